package transport

import "github.com/shopspring/decimal"

type ZoneRequest struct {
	Name      string   `json:"name"      validate:"required,max=120"`
	Countries []string `json:"countries" validate:"required,min=1,dive,len=2"`
	Active    *bool    `json:"active,omitempty"`
}

type CarrierRequest struct {
	ZoneID       uint             `json:"zoneId"       validate:"required"`
	Name         string           `json:"name"         validate:"required,max=120"`
	Price        *decimal.Decimal `json:"price"        validate:"required"`
	DeliveryTime string           `json:"deliveryTime" validate:"max=120"`
	Active       *bool            `json:"active,omitempty"`
}

type ShippingOptionResponse struct {
	CarrierID    uint   `json:"carrierId"`
	CarrierName  string `json:"carrierName"`
	ZoneID       uint   `json:"zoneId"`
	Price        int64  `json:"price"`
	DeliveryTime string `json:"deliveryTime"`
}
