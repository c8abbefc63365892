package service

import (
	"context"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/pkg/pagination"
)

// NotificationService is the read side of the notification fan-out.
// Admins also see broadcast rows (no recipient).
type NotificationService struct {
	Repo *repo.GormRepo
}

func (s *NotificationService) List(ctx context.Context, actor Actor, unreadOnly bool, page, size int) (*pagination.Page[models.Notification], error) {
	offset, limit := pagination.Calculate(page, size)
	total, items, err := s.Repo.ListNotifications(ctx, actor.ID, actor.IsAdmin(), unreadOnly, offset, limit)
	if err != nil {
		return nil, dbErr(err, "notifications")
	}
	return &pagination.Page[models.Notification]{Items: items, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	n, err := s.Repo.UnreadCount(ctx, actor.ID, actor.IsAdmin())
	return n, dbErr(err, "unread count")
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id uint) error {
	return dbErr(s.Repo.MarkNotificationRead(ctx, id, actor.ID, actor.IsAdmin()), "notification")
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor Actor) (int64, error) {
	n, err := s.Repo.MarkAllNotificationsRead(ctx, actor.ID, actor.IsAdmin())
	return n, dbErr(err, "mark notifications read")
}

func (s *NotificationService) Delete(ctx context.Context, actor Actor, id uint) error {
	return dbErr(s.Repo.DeleteNotification(ctx, id, actor.ID, actor.IsAdmin()), "notification")
}
