package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	Email     string    `gorm:"index"                 json:"email"`
	FullName  string    `                             json:"fullName"`
	Phone     string    `                             json:"phone"`
	Role      string    `gorm:"not null;index"        json:"role"`
	CreatedAt time.Time `gorm:"index"                 json:"createdAt"`
	UpdatedAt time.Time `                             json:"updatedAt"`
}

type Store struct {
	ID           uint      `gorm:"primaryKey"               json:"id"`
	SellerID     uint      `gorm:"uniqueIndex;not null"     json:"sellerId"`
	Name         string    `gorm:"not null"                 json:"name"`
	Description  string    `                                json:"description"`
	ProductCount int64     `gorm:"not null;default:0"       json:"productCount"`
	OrderCount   int64     `gorm:"not null;default:0"       json:"orderCount"`
	TotalRevenue int64     `gorm:"not null;default:0"       json:"totalRevenue"`
	CreatedAt    time.Time `gorm:"index"                    json:"createdAt"`
	UpdatedAt    time.Time `                                json:"updatedAt"`
}

type Category struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	Name      string    `gorm:"uniqueIndex;not null"  json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null"  json:"slug"`
	ParentID  *uint     `gorm:"index"                 json:"parentId,omitempty"`
	CreatedAt time.Time `                             json:"createdAt"`
}

// Product prices are minor units.
type Product struct {
	ID                  uint           `gorm:"primaryKey"            json:"id"`
	VendorID            uint           `gorm:"index;not null"        json:"vendorId"`
	CategoryID          *uint          `gorm:"index"                 json:"categoryId,omitempty"`
	SKU                 string         `gorm:"uniqueIndex;not null"  json:"sku"`
	Name                string         `gorm:"not null"              json:"name"`
	Description         string         `                             json:"description"`
	Price               int64          `gorm:"not null"              json:"price"`
	OriginalPrice       int64          `gorm:"not null;default:0"    json:"originalPrice"`
	PurchasePrice       int64          `gorm:"not null;default:0"    json:"purchasePrice"`
	Stock               int            `gorm:"not null;default:0"    json:"stock"`
	MinThreshold        int            `gorm:"not null;default:0"    json:"minThreshold"`
	SuggestedReorderQty int            `gorm:"not null;default:0"    json:"suggestedReorderQty"`
	Active              bool           `gorm:"not null;index"        json:"active"`
	CreatedAt           time.Time      `gorm:"index"                 json:"createdAt"`
	UpdatedAt           time.Time      `                             json:"updatedAt"`
	DeletedAt           gorm.DeletedAt `gorm:"index"                 json:"-"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey"                                   json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_cart_user_product;not null"   json:"userId"`
	ProductID uint      `gorm:"uniqueIndex:idx_cart_user_product;not null"   json:"productId"`
	Quantity  int       `gorm:"not null;check:quantity > 0"                  json:"quantity"`
	CreatedAt time.Time `                                                    json:"createdAt"`
	UpdatedAt time.Time `                                                    json:"updatedAt"`
}

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey"                                       json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null"   json:"userId"`
	ProductID uint      `gorm:"uniqueIndex:idx_wishlist_user_product;not null"   json:"productId"`
	CreatedAt time.Time `                                                        json:"createdAt"`
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Store{}, &Category{}, &Product{}, &CartItem{}, &WishlistItem{},
		&Order{}, &OrderItem{}, &Transaction{}, &StockAlert{}, &Notification{},
		&ShippingZone{}, &Carrier{}, &PaymentConfirmation{},
	}
}
