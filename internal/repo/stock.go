package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

// DecrementStock reserves qty units with a conditional update and returns the
// remaining stock. ok is false when the product lacks enough stock or is gone.
func (r *GormRepo) DecrementStock(ctx context.Context, productID uint, qty int) (newStock int, ok bool, err error) {
	res := r.db(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}

	var p models.Product
	if err := r.db(ctx).Select("stock").First(&p, productID).Error; err != nil {
		return 0, false, err
	}
	return p.Stock, true, nil
}

// IncrementStock restores stock, including on soft-deleted products.
func (r *GormRepo) IncrementStock(ctx context.Context, productID uint, qty int) error {
	return r.db(ctx).Unscoped().Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

func (r *GormRepo) SetStock(ctx context.Context, productID uint, stock int) error {
	return r.db(ctx).Model(&models.Product{}).Where("id = ?", productID).Update("stock", stock).Error
}

// LowStockProducts returns a seller's active products at or under their threshold.
// Products without a threshold fall back to cutoff.
func (r *GormRepo) LowStockProducts(ctx context.Context, sellerID uint, cutoff int) ([]models.Product, error) {
	var out []models.Product
	err := r.db(ctx).
		Where("vendor_id = ? AND active = ?", sellerID, true).
		Where("(min_threshold > 0 AND stock < min_threshold) OR (min_threshold = 0 AND stock <= ?)", cutoff).
		Order("stock ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) CreateAlert(ctx context.Context, a *models.StockAlert) error {
	return r.db(ctx).Create(a).Error
}

func (r *GormRepo) GetAlert(ctx context.Context, id uint) (*models.StockAlert, error) {
	var a models.StockAlert
	if err := r.db(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormRepo) ListAlerts(ctx context.Context, sellerID *uint, status string) ([]models.StockAlert, error) {
	q := r.db(ctx).Model(&models.StockAlert{})
	if sellerID != nil {
		q = q.Where("seller_id = ?", *sellerID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.StockAlert
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveAlert moves an active alert to resolved. It reports false if the alert was not active.
func (r *GormRepo) ResolveAlert(ctx context.Context, id, by uint, at time.Time) (bool, error) {
	res := r.db(ctx).Model(&models.StockAlert{}).
		Where("id = ? AND status = ?", id, models.AlertActive).
		Updates(map[string]any{"status": models.AlertResolved, "resolved_by": by, "resolved_at": at})
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) ResolveProductAlerts(ctx context.Context, productID, by uint, at time.Time) (int64, error) {
	res := r.db(ctx).Model(&models.StockAlert{}).
		Where("product_id = ? AND status = ?", productID, models.AlertActive).
		Updates(map[string]any{"status": models.AlertResolved, "resolved_by": by, "resolved_at": at})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) HasActiveAlert(ctx context.Context, productID uint) (bool, error) {
	var n int64
	err := r.db(ctx).Model(&models.StockAlert{}).
		Where("product_id = ? AND status = ?", productID, models.AlertActive).
		Count(&n).Error
	return n > 0, err
}
