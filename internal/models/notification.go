package models

import "time"

const (
	SeverityCritical  = "critical"
	SeverityImportant = "important"

	AlertActive   = "active"
	AlertResolved = "resolved"
)

type StockAlert struct {
	ID         uint       `gorm:"primaryKey"         json:"id"`
	ProductID  uint       `gorm:"index;not null"     json:"productId"`
	SellerID   uint       `gorm:"index;not null"     json:"sellerId"`
	Severity   string     `gorm:"not null"           json:"severity"`
	Message    string     `gorm:"not null"           json:"message"`
	Stock      int        `gorm:"not null"           json:"stock"`
	Status     string     `gorm:"index;not null"     json:"status"`
	ResolvedBy *uint      `                          json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `                          json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `gorm:"index"              json:"createdAt"`
}

// Notification with a nil UserID is an admin broadcast.
type Notification struct {
	ID        uint           `gorm:"primaryKey"                  json:"id"`
	UserID    *uint          `gorm:"index"                       json:"userId"`
	Type      string         `gorm:"not null"                    json:"type"`
	Title     string         `gorm:"not null"                    json:"title"`
	Message   string         `gorm:"not null"                    json:"message"`
	Payload   map[string]any `gorm:"type:jsonb;serializer:json"  json:"payload,omitempty"`
	Read      bool           `gorm:"not null;default:false"      json:"read"`
	CreatedAt time.Time      `gorm:"index"                       json:"createdAt"`
}
