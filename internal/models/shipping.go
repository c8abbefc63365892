package models

type ShippingZone struct {
	ID        uint      `gorm:"primaryKey"                  json:"id"`
	Name      string    `gorm:"uniqueIndex;not null"        json:"name"`
	Countries []string  `gorm:"type:jsonb;serializer:json"  json:"countries"`
	Active    bool      `gorm:"not null"                    json:"active"`
	Carriers  []Carrier `gorm:"foreignKey:ZoneID"           json:"carriers,omitempty"`
}

type Carrier struct {
	ID           uint   `gorm:"primaryKey"      json:"id"`
	ZoneID       uint   `gorm:"index;not null"  json:"zoneId"`
	Name         string `gorm:"not null"        json:"name"`
	Price        int64  `gorm:"not null"        json:"price"`
	DeliveryTime string `                       json:"deliveryTime"`
	Active       bool   `gorm:"not null"        json:"active"`
}
