package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type StoreCounter string

const (
	CounterProducts StoreCounter = "product_count"
	CounterOrders   StoreCounter = "order_count"
	CounterRevenue  StoreCounter = "total_revenue"
)

func (r *GormRepo) CreateStore(ctx context.Context, s *models.Store) error {
	return r.db(ctx).Create(s).Error
}

func (r *GormRepo) GetStore(ctx context.Context, id uint) (*models.Store, error) {
	var s models.Store
	if err := r.db(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormRepo) GetStoreBySeller(ctx context.Context, sellerID uint) (*models.Store, error) {
	var s models.Store
	if err := r.db(ctx).Where("seller_id = ?", sellerID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// IncStoreCounter applies a single-statement increment. A seller without a store is a no-op.
func (r *GormRepo) IncStoreCounter(ctx context.Context, sellerID uint, col StoreCounter, delta int64) error {
	switch col {
	case CounterProducts, CounterOrders, CounterRevenue:
	default:
		return fmt.Errorf("unknown store counter %q", col)
	}
	return r.db(ctx).Model(&models.Store{}).
		Where("seller_id = ?", sellerID).
		Update(string(col), gorm.Expr(string(col)+" + ?", delta)).Error
}

// RecomputeStoreCounters rebuilds every store's counters from source tables.
func (r *GormRepo) RecomputeStoreCounters(ctx context.Context, revenueStatus models.OrderStatus) (int64, error) {
	res := r.db(ctx).Exec(`
UPDATE stores SET
  product_count = (SELECT COUNT(*) FROM products p
                   WHERE p.vendor_id = stores.seller_id AND p.deleted_at IS NULL),
  order_count   = (SELECT COUNT(*) FROM transactions t
                   WHERE t.seller_id = stores.seller_id),
  total_revenue = (SELECT COALESCE(SUM(t.amount), 0) FROM transactions t
                   JOIN orders o ON o.id = t.order_id
                   WHERE t.seller_id = stores.seller_id AND o.status = ? AND o.deleted_at IS NULL)`,
		revenueStatus)
	return res.RowsAffected, res.Error
}
