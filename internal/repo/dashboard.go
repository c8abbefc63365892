package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

// RevenuePoint is one month of revenue; Month is YYYY-MM.
type RevenuePoint struct {
	Month  string
	Amount int64
}

// SellerTurnover sums a seller's transaction amounts on orders in status created in [from, to).
func (r *GormRepo) SellerTurnover(ctx context.Context, sellerID uint, status models.OrderStatus, from, to time.Time) (int64, error) {
	var sum int64
	err := r.db(ctx).Table("transactions AS t").
		Joins("JOIN orders o ON o.id = t.order_id").
		Where("t.seller_id = ? AND o.status = ? AND o.deleted_at IS NULL", sellerID, status).
		Where("o.created_at >= ? AND o.created_at < ?", from, to).
		Select("COALESCE(SUM(t.amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *GormRepo) SellerOrderCount(ctx context.Context, sellerID uint, from, to time.Time) (int64, error) {
	var n int64
	err := r.db(ctx).Table("transactions AS t").
		Joins("JOIN orders o ON o.id = t.order_id").
		Where("t.seller_id = ? AND o.deleted_at IS NULL", sellerID).
		Where("o.created_at >= ? AND o.created_at < ?", from, to).
		Distinct("t.order_id").
		Count(&n).Error
	return n, err
}

// CountProducts counts a seller's products created in [from, to). A zero from
// counts all active products. promo restricts to discounted products.
func (r *GormRepo) CountProducts(ctx context.Context, sellerID uint, promo bool, from, to time.Time) (int64, error) {
	q := r.db(ctx).Model(&models.Product{}).Where("vendor_id = ?", sellerID)
	if from.IsZero() {
		q = q.Where("active = ?", true)
	} else {
		q = q.Where("created_at >= ? AND created_at < ?", from, to)
	}
	if promo {
		q = q.Where("original_price > price")
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *GormRepo) OrderRevenue(ctx context.Context, status models.OrderStatus, from, to time.Time) (int64, error) {
	var sum int64
	err := r.db(ctx).Model(&models.Order{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", status, from, to).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *GormRepo) CountOrdersBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db(ctx).Model(&models.Order{}).Where("created_at >= ? AND created_at < ?", from, to).Count(&n).Error
	return n, err
}

func (r *GormRepo) CountUsers(ctx context.Context, role string, from, to time.Time) (int64, error) {
	var n int64
	err := r.db(ctx).Model(&models.User{}).
		Where("role = ? AND created_at >= ? AND created_at < ?", role, from, to).
		Count(&n).Error
	return n, err
}

func (r *GormRepo) ClientOrderStats(ctx context.Context, userID uint) (count, spend int64, err error) {
	if err = r.db(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, 0, err
	}
	err = r.db(ctx).Model(&models.Order{}).
		Where("user_id = ? AND payment_status = ?", userID, models.PaymentPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&spend).Error
	return count, spend, err
}

// RevenueSince sums recognized revenue per calendar month (UTC) from since on.
// A nil sellerID selects order totals across the marketplace. Months without
// revenue are absent.
func (r *GormRepo) RevenueSince(ctx context.Context, sellerID *uint, status models.OrderStatus, since time.Time) ([]RevenuePoint, error) {
	db := r.db(ctx)
	var out []RevenuePoint
	var err error
	if sellerID != nil {
		err = db.Table("transactions AS t").
			Joins("JOIN orders o ON o.id = t.order_id").
			Where("t.seller_id = ? AND o.status = ? AND o.deleted_at IS NULL AND o.created_at >= ?", *sellerID, status, since).
			Select(monthOf(db, "o.created_at") + " AS month, SUM(t.amount) AS amount").
			Group("month").Order("month").
			Scan(&out).Error
	} else {
		err = db.Model(&models.Order{}).
			Where("status = ? AND created_at >= ?", status, since).
			Select(monthOf(db, "created_at") + " AS month, SUM(total_amount) AS amount").
			Group("month").Order("month").
			Scan(&out).Error
	}
	return out, err
}

// monthOf renders col as a YYYY-MM key in UTC for the connected dialect.
func monthOf(db *gorm.DB, col string) string {
	if db.Dialector.Name() == "sqlite" {
		return "strftime('%Y-%m', " + col + ")"
	}
	return "to_char(" + col + " AT TIME ZONE 'UTC', 'YYYY-MM')"
}
