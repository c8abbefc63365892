package models

import (
	"time"

	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
	OrderFailed     OrderStatus = "failed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

const (
	MethodCard           = "card"
	MethodCashOnDelivery = "cash_on_delivery"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxPaid      TransactionStatus = "paid"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxRefunded  TransactionStatus = "refunded"
)

type Address struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
	Country  string `json:"country"`
	Email    string `json:"email"`
}

type ShippingOption struct {
	CarrierID    uint   `json:"carrierId"`
	CarrierName  string `json:"carrierName"`
	Price        int64  `json:"price"`
	DeliveryTime string `json:"deliveryTime"`
}

type Order struct {
	ID                uint            `gorm:"primaryKey"                         json:"id"`
	OrderNumber       string          `gorm:"uniqueIndex;not null"               json:"orderNumber"`
	UserID            uint            `gorm:"index;not null"                     json:"userId"`
	CustomerName      string          `                                          json:"customerName"`
	CustomerEmail     string          `                                          json:"customerEmail"`
	CustomerPhone     string          `                                          json:"customerPhone"`
	Status            OrderStatus     `gorm:"index;not null"                     json:"status"`
	PaymentStatus     PaymentStatus   `gorm:"index;not null"                     json:"paymentStatus"`
	PaymentMethod     string          `gorm:"not null"                           json:"paymentMethod"`
	PaymentIntentID   *string         `gorm:"uniqueIndex"                        json:"paymentIntentId,omitempty"`
	Currency          string          `gorm:"not null"                           json:"currency"`
	TotalAmount       int64           `gorm:"not null"                           json:"totalAmount"`
	ShippingAmount    int64           `gorm:"not null;default:0"                 json:"shippingAmount"`
	ShippingAddress   Address         `gorm:"type:jsonb;serializer:json"         json:"shippingAddress"`
	ShippingOption    *ShippingOption `gorm:"type:jsonb;serializer:json"         json:"shippingOption,omitempty"`
	Carrier           string          `                                          json:"carrier,omitempty"`
	TrackingNumber    string          `                                          json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time      `                                          json:"estimatedDelivery,omitempty"`
	Flagged           bool            `gorm:"not null;default:false"             json:"flagged"`
	FlagReason        string          `                                          json:"flagReason,omitempty"`
	CreatedAt         time.Time       `gorm:"index"                              json:"createdAt"`
	UpdatedAt         time.Time       `                                          json:"updatedAt"`
	DeletedAt         gorm.DeletedAt  `gorm:"index"                              json:"-"`

	Items        []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:OrderID"                             json:"transactions,omitempty"`
}

// GrandTotal is what the buyer is charged.
func (o *Order) GrandTotal() int64 { return o.TotalAmount + o.ShippingAmount }

type OrderItem struct {
	ID          uint   `gorm:"primaryKey"                   json:"id"`
	OrderID     uint   `gorm:"index;not null"               json:"orderId"`
	ProductID   uint   `gorm:"index;not null"               json:"productId"`
	VendorID    uint   `gorm:"index;not null"               json:"vendorId"`
	ProductName string `gorm:"not null"                     json:"productName"`
	Quantity    int    `gorm:"not null;check:quantity > 0"  json:"quantity"`
	UnitPrice   int64  `gorm:"not null"                     json:"unitPrice"`
	TotalPrice  int64  `gorm:"not null"                     json:"totalPrice"`
}

// Transaction is one seller's share of an order.
type Transaction struct {
	ID        uint              `gorm:"primaryKey"                                   json:"id"`
	OrderID   uint              `gorm:"uniqueIndex:idx_tx_order_seller;not null"     json:"orderId"`
	SellerID  uint              `gorm:"uniqueIndex:idx_tx_order_seller;index;not null" json:"sellerId"`
	Amount    int64             `gorm:"not null"                                     json:"amount"`
	Currency  string            `gorm:"not null"                                     json:"currency"`
	Status    TransactionStatus `gorm:"index;not null"                               json:"status"`
	CreatedAt time.Time         `gorm:"index"                                        json:"createdAt"`
	UpdatedAt time.Time         `                                                    json:"updatedAt"`
}

// PaymentConfirmation marks an outcome already applied for a payment intent.
// An intent can be declined and later succeed, so each outcome is kept once.
type PaymentConfirmation struct {
	PaymentIntentID string    `gorm:"primaryKey"      json:"paymentIntentId"`
	Outcome         string    `gorm:"primaryKey"      json:"outcome"`
	OrderID         uint      `gorm:"index;not null"  json:"orderId"`
	ProcessedAt     time.Time `gorm:"not null"        json:"processedAt"`
}
