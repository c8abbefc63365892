package transport

import "github.com/shopspring/decimal"

type CategoryRequest struct {
	Name     string `json:"name"     validate:"required,max=120"`
	Slug     string `json:"slug"     validate:"omitempty,max=120"`
	ParentID *uint  `json:"parentId,omitempty"`
}

type CreateProductRequest struct {
	CategoryID          *uint            `json:"categoryId,omitempty"`
	SKU                 string           `json:"sku"                 validate:"required,max=64"`
	Name                string           `json:"name"                validate:"required,max=200"`
	Description         string           `json:"description"         validate:"max=5000"`
	Price               *decimal.Decimal `json:"price"               validate:"required"`
	OriginalPrice       *decimal.Decimal `json:"originalPrice,omitempty"`
	PurchasePrice       *decimal.Decimal `json:"purchasePrice,omitempty"`
	Stock               int              `json:"stock"               validate:"gte=0"`
	MinThreshold        int              `json:"minThreshold"        validate:"gte=0"`
	SuggestedReorderQty int              `json:"suggestedReorderQty" validate:"gte=0"`
	Active              *bool            `json:"active,omitempty"`
}

type PatchProductRequest struct {
	CategoryID          *uint            `json:"categoryId,omitempty"`
	Name                *string          `json:"name,omitempty"        validate:"omitempty,min=1,max=200"`
	Description         *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price               *decimal.Decimal `json:"price,omitempty"`
	OriginalPrice       *decimal.Decimal `json:"originalPrice,omitempty"`
	PurchasePrice       *decimal.Decimal `json:"purchasePrice,omitempty"`
	MinThreshold        *int             `json:"minThreshold,omitempty"        validate:"omitempty,gte=0"`
	SuggestedReorderQty *int             `json:"suggestedReorderQty,omitempty" validate:"omitempty,gte=0"`
	Active              *bool            `json:"active,omitempty"`
}

type StockAdjustRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

type StoreRequest struct {
	Name        string `json:"name"        validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type CartAddRequest struct {
	ProductID uint `json:"productId" validate:"required"`
	Quantity  int  `json:"quantity"  validate:"required,gt=0"`
}

type CartSetRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type WishlistAddRequest struct {
	ProductID uint `json:"productId" validate:"required"`
}

type ProfileRequest struct {
	Email    string `json:"email"    validate:"omitempty,email"`
	FullName string `json:"fullName" validate:"max=200"`
	Phone    string `json:"phone"    validate:"max=40"`
}
