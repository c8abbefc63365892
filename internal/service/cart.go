package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
)

type CartService struct {
	Repo *repo.GormRepo
}

func (s *CartService) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	items, err := s.Repo.GetCart(ctx, userID)
	return items, dbErr(err, "cart")
}

// purchasable rejects unknown, deleted or inactive products.
func (s *CartService) purchasable(ctx context.Context, productID uint) error {
	if productID == 0 {
		return Invalid("productId", "required")
	}
	p, err := s.Repo.GetProduct(ctx, productID)
	if err != nil {
		return dbErr(err, "product")
	}
	if !p.Active {
		return Invalid("productId", "product is not available")
	}
	return nil
}

func (s *CartService) AddToCart(ctx context.Context, userID, productID uint, qty int) (*models.CartItem, error) {
	if qty <= 0 {
		return nil, Invalid("quantity", "must be greater than zero")
	}
	if err := s.purchasable(ctx, productID); err != nil {
		return nil, err
	}
	item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
	if err := s.Repo.AddToCart(ctx, item); err != nil {
		return nil, dbErr(err, "add to cart")
	}
	return item, nil
}

func (s *CartService) SetQuantity(ctx context.Context, userID, productID uint, qty int) (*models.CartItem, error) {
	if qty <= 0 {
		return nil, Invalid("quantity", "must be greater than zero")
	}
	item, err := s.Repo.SetCartQuantity(ctx, userID, productID, qty)
	if err != nil {
		return nil, dbErr(err, fmt.Sprintf("cart item for product %d", productID))
	}
	return item, nil
}

func (s *CartService) Remove(ctx context.Context, userID, productID uint) error {
	return dbErr(s.Repo.RemoveFromCart(ctx, userID, productID), fmt.Sprintf("cart item for product %d", productID))
}

func (s *CartService) Clear(ctx context.Context, userID uint) error {
	return dbErr(s.Repo.ClearCart(ctx, userID), "clear cart")
}

func (s *CartService) Wishlist(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	items, err := s.Repo.ListWishlist(ctx, userID)
	return items, dbErr(err, "wishlist")
}

// AddToWishlist is idempotent: adding a product twice keeps one row.
func (s *CartService) AddToWishlist(ctx context.Context, userID, productID uint) error {
	if productID == 0 {
		return Invalid("productId", "required")
	}
	if _, err := s.Repo.GetProduct(ctx, productID); err != nil {
		return dbErr(err, "product")
	}
	return dbErr(s.Repo.AddToWishlist(ctx, &models.WishlistItem{UserID: userID, ProductID: productID}), "add to wishlist")
}

func (s *CartService) RemoveFromWishlist(ctx context.Context, userID, productID uint) error {
	return dbErr(s.Repo.RemoveFromWishlist(ctx, userID, productID), "wishlist item")
}
