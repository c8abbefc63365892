package transport

import "time"

type ShipRequest struct {
	Carrier           string     `json:"carrier"           validate:"required,max=120"`
	TrackingNumber    string     `json:"trackingNumber"    validate:"required,max=120"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

type FlagRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled refunded failed"`
}
