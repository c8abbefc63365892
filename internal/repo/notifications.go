package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func (r *GormRepo) CreateNotifications(ctx context.Context, ns []*models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return r.db(ctx).Create(ns).Error
}

// visibleTo scopes notifications to a user; admins also see broadcasts.
func (r *GormRepo) visibleTo(ctx context.Context, userID uint, admin bool) *gorm.DB {
	q := r.db(ctx).Model(&models.Notification{})
	if admin {
		return q.Where("user_id = ? OR user_id IS NULL", userID)
	}
	return q.Where("user_id = ?", userID)
}

func (r *GormRepo) ListNotifications(ctx context.Context, userID uint, admin, unreadOnly bool, offset, limit int) (int64, []models.Notification, error) {
	base := func() *gorm.DB {
		q := r.visibleTo(ctx, userID, admin)
		if unreadOnly {
			q = q.Where("read = ?", false)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return 0, nil, err
	}
	var out []models.Notification
	if err := base().Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return 0, nil, err
	}
	return total, out, nil
}

func (r *GormRepo) UnreadCount(ctx context.Context, userID uint, admin bool) (int64, error) {
	var n int64
	err := r.visibleTo(ctx, userID, admin).Where("read = ?", false).Count(&n).Error
	return n, err
}

func (r *GormRepo) MarkNotificationRead(ctx context.Context, id, userID uint, admin bool) error {
	res := r.visibleTo(ctx, userID, admin).Where("id = ?", id).Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) MarkAllNotificationsRead(ctx context.Context, userID uint, admin bool) (int64, error) {
	res := r.visibleTo(ctx, userID, admin).Where("read = ?", false).Update("read", true)
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteNotification(ctx context.Context, id, userID uint, admin bool) error {
	q := r.db(ctx).Where("id = ?", id)
	if admin {
		q = q.Where("user_id = ? OR user_id IS NULL", userID)
	} else {
		q = q.Where("user_id = ?", userID)
	}
	res := q.Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
