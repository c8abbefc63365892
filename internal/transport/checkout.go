package transport

import (
	"github.com/shopspring/decimal"
)

// CartLine prices are major units; the server recomputes from catalog prices.
type CartLine struct {
	ProductID uint             `json:"productId" validate:"required"`
	Quantity  int              `json:"quantity"  validate:"required,gt=0"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	VendorID  *uint            `json:"vendorId,omitempty"`
}

type ShippingAddress struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Phone    string `json:"phone"    validate:"omitempty,max=40"`
	Street   string `json:"street"   validate:"required,max=300"`
	City     string `json:"city"     validate:"required,max=120"`
	State    string `json:"state"    validate:"omitempty,max=120"`
	ZipCode  string `json:"zipCode"  validate:"required,max=20"`
	Country  string `json:"country"  validate:"required,len=2"`
	Email    string `json:"email"    validate:"omitempty,email"`
}

type ShippingOptionRef struct {
	CarrierID uint `json:"carrierId" validate:"required"`
}

type CheckoutRequest struct {
	CartItems       []CartLine         `json:"cartItems"       validate:"omitempty,dive"`
	ShippingAddress ShippingAddress    `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"   validate:"omitempty,oneof=card cash_on_delivery"`
	ShippingOption  *ShippingOptionRef `json:"shippingOption,omitempty"`
	Currency        string             `json:"currency"        validate:"omitempty,len=3"`
	Amount          *decimal.Decimal   `json:"amount,omitempty"`
}

type CheckoutResponse struct {
	ClientSecret    string `json:"clientSecret,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	OrderID         uint   `json:"orderId"`
	OrderNumber     string `json:"orderNumber"`
	TotalAmount     int64  `json:"totalAmount"`
	ShippingAmount  int64  `json:"shippingAmount"`
	Currency        string `json:"currency"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

type ConfirmPaymentResponse struct {
	ID            uint   `json:"id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}
