package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type OrderFilter struct {
	UserID   *uint
	SellerID *uint
	Status   models.OrderStatus
	Flagged  *bool
}

// CreateOrder inserts the order together with its items.
func (r *GormRepo) CreateOrder(ctx context.Context, o *models.Order) error {
	return r.db(ctx).Create(o).Error
}

func (r *GormRepo) CreateTransactions(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.db(ctx).Create(&txs).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("seller_id ASC") }).
		First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) GetOrderByIntent(ctx context.Context, intentID string) (*models.Order, error) {
	var o models.Order
	err := r.db(ctx).
		Preload("Items").
		Preload("Transactions").
		Where("payment_intent_id = ?", intentID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) orderQuery(ctx context.Context, f OrderFilter) *gorm.DB {
	q := r.db(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("orders.user_id = ?", *f.UserID)
	}
	if f.SellerID != nil {
		q = q.Where("EXISTS (SELECT 1 FROM transactions t WHERE t.order_id = orders.id AND t.seller_id = ?)", *f.SellerID)
	}
	if f.Status != "" {
		q = q.Where("orders.status = ?", f.Status)
	}
	if f.Flagged != nil {
		q = q.Where("orders.flagged = ?", *f.Flagged)
	}
	return q
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter, offset, limit int) (int64, []models.Order, error) {
	var total int64
	if err := r.orderQuery(ctx, f).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var out []models.Order
	err := r.orderQuery(ctx, f).
		Preload("Items").
		Preload("Transactions").
		Order("orders.created_at DESC, orders.id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return 0, nil, err
	}
	return total, out, nil
}

// UpdateOrder applies column updates to a live order.
func (r *GormRepo) UpdateOrder(ctx context.Context, id uint, updates map[string]any) error {
	res := r.db(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TransitionOrder moves an order from one status to another only if it is still in from.
func (r *GormRepo) TransitionOrder(ctx context.Context, id uint, from models.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db(ctx).Model(&models.Order{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) SoftDeleteOrder(ctx context.Context, id uint) error {
	res := r.db(ctx).Delete(&models.Order{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) SetTransactionsStatus(ctx context.Context, orderID uint, status models.TransactionStatus) error {
	return r.db(ctx).Model(&models.Transaction{}).
		Where("order_id = ?", orderID).
		Update("status", status).Error
}

func (r *GormRepo) SellerTransaction(ctx context.Context, orderID, sellerID uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db(ctx).Where("order_id = ? AND seller_id = ?", orderID, sellerID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertConfirmation records an applied payment outcome. It reports false when
// the same outcome was already recorded for the intent.
func (r *GormRepo) InsertConfirmation(ctx context.Context, pc *models.PaymentConfirmation) (bool, error) {
	res := r.db(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(pc)
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) HasConfirmation(ctx context.Context, intentID, outcome string) (bool, error) {
	var n int64
	err := r.db(ctx).Model(&models.PaymentConfirmation{}).
		Where("payment_intent_id = ? AND outcome = ?", intentID, outcome).
		Count(&n).Error
	return n > 0, err
}

// StalePendingPayments lists card orders whose payment never settled.
func (r *GormRepo) StalePendingPayments(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	var out []models.Order
	err := r.db(ctx).
		Where("payment_status = ? AND payment_method = ? AND payment_intent_id IS NOT NULL AND created_at < ?",
			models.PaymentPending, models.MethodCard, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
