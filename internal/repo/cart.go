package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func (r *GormRepo) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart merges quantities for an existing line.
func (r *GormRepo) AddToCart(ctx context.Context, item *models.CartItem) error {
	return r.db(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id = ?", item.UserID, item.ProductID).
			Update("quantity", gorm.Expr("quantity + ?", item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND product_id = ?", item.UserID, item.ProductID).First(item).Error
		}
		return tx.Create(item).Error
	})
}

func (r *GormRepo) SetCartQuantity(ctx context.Context, userID, productID uint, qty int) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
			return err
		}
		item.Quantity = qty
		return tx.Model(&item).Update("quantity", qty).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) RemoveFromCart(ctx context.Context, userID, productID uint) error {
	res := r.db(ctx).Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uint) error {
	return r.db(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

func (r *GormRepo) ListWishlist(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	var out []models.WishlistItem
	if err := r.db(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) AddToWishlist(ctx context.Context, item *models.WishlistItem) error {
	return r.db(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(item).Error
}

func (r *GormRepo) RemoveFromWishlist(ctx context.Context, userID, productID uint) error {
	res := r.db(ctx).Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.WishlistItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) CountWishlist(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db(ctx).Model(&models.WishlistItem{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
