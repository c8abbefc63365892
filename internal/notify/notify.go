package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

const AdminRoom = "admin-room"

func UserRoom(userID uint) string { return fmt.Sprintf("user-%d", userID) }

// Notifier pushes a persisted notification to connected clients. Delivery is best effort.
type Notifier interface {
	ToUser(userID uint, n *models.Notification)
	ToAdmins(n *models.Notification)
}

type store interface {
	CreateNotifications(ctx context.Context, ns []*models.Notification) error
}

type Service struct {
	Store store
	Push  Notifier
}

func NewService(s store, push Notifier) *Service {
	if push == nil {
		push = Nop{}
	}
	return &Service{Store: s, Push: push}
}

// Send persists n and then pushes it. A nil UserID goes to the admin room.
func (s *Service) Send(ctx context.Context, n *models.Notification) error {
	if err := s.Store.CreateNotifications(ctx, []*models.Notification{n}); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	s.Deliver(ctx, n)
	return nil
}

// Deliver pushes notifications that were already persisted, e.g. inside a committed transaction.
func (s *Service) Deliver(ctx context.Context, ns ...*models.Notification) {
	l := logging.FromContext(ctx)
	for _, n := range ns {
		if n == nil {
			continue
		}
		if n.UserID == nil {
			s.Push.ToAdmins(n)
		} else {
			s.Push.ToUser(*n.UserID, n)
		}
		l.Debugw("notification_pushed", "id", n.ID, "type", n.Type)
	}
}

type Nop struct{}

func (Nop) ToUser(uint, *models.Notification) {}
func (Nop) ToAdmins(*models.Notification)     {}

// Recorder captures pushes in memory.
type Recorder struct {
	mu     sync.Mutex
	users  map[uint][]*models.Notification
	admins []*models.Notification
}

func NewRecorder() *Recorder {
	return &Recorder{users: map[uint][]*models.Notification{}}
}

func (r *Recorder) ToUser(id uint, n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = append(r.users[id], n)
}

func (r *Recorder) ToAdmins(n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins = append(r.admins, n)
}

func (r *Recorder) ForUser(id uint) []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Notification(nil), r.users[id]...)
}

func (r *Recorder) ForAdmins() []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Notification(nil), r.admins...)
}
