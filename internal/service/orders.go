package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/payment"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/money"
	"github.com/Skotchmaster/marketplace/pkg/pagination"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderProcessing, models.OrderShipped, models.OrderCancelled, models.OrderRefunded, models.OrderFailed},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled, models.OrderRefunded},
	models.OrderShipped:    {models.OrderDelivered, models.OrderCancelled, models.OrderRefunded},
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s models.OrderStatus) bool {
	return len(transitions[s]) == 0
}

type OrderService struct {
	Repo     *repo.GormRepo
	Payments payment.Provider
	Notify   *notify.Service
	Events   events.Publisher
	History  history.Recorder
	Now      clock
}

// change describes one guarded status change and what it does inside the transaction.
type change struct {
	to         models.OrderStatus
	updates    map[string]any
	adminOnly  bool
	sideEffect func(ctx context.Context, tx *repo.GormRepo, o *models.Order) error
	buyerNote  func(o *models.Order) *models.Notification
	note       string
}

func (s *OrderService) Get(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, dbErr(err, "order")
	}
	if err := canView(actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

func canView(actor Actor, o *models.Order) error {
	switch {
	case actor.IsAdmin(), o.UserID == actor.ID:
		return nil
	case actor.IsSeller() && isParty(o, actor.ID):
		return nil
	}
	return fmt.Errorf("%w: order %d", ErrForbidden, o.ID)
}

func isParty(o *models.Order, sellerID uint) bool {
	for _, t := range o.Transactions {
		if t.SellerID == sellerID {
			return true
		}
	}
	return false
}

// List scopes orders by role: buyers see their own, sellers the ones they sell into, admins all.
func (s *OrderService) List(ctx context.Context, actor Actor, status string, flagged *bool, page, size int) (*pagination.Page[models.Order], error) {
	f := repo.OrderFilter{Status: models.OrderStatus(status), Flagged: flagged}
	switch {
	case actor.IsAdmin():
	case actor.IsSeller():
		f.SellerID = uptr(actor.ID)
	default:
		f.UserID = uptr(actor.ID)
	}
	if status != "" && !IsKnownStatus(f.Status) {
		return nil, Invalid("status", "unknown order status")
	}

	offset, limit := pagination.Calculate(page, size)
	total, items, err := s.Repo.ListOrders(ctx, f, offset, limit)
	if err != nil {
		return nil, dbErr(err, "list orders")
	}
	return &pagination.Page[models.Order]{Items: items, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

func IsKnownStatus(s models.OrderStatus) bool {
	switch s {
	case models.OrderPending, models.OrderProcessing, models.OrderShipped, models.OrderDelivered,
		models.OrderCancelled, models.OrderRefunded, models.OrderFailed:
		return true
	}
	return false
}

func (s *OrderService) Process(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	return s.apply(ctx, actor, id, s.changeTo(models.OrderProcessing))
}

func (s *OrderService) Ship(ctx context.Context, actor Actor, id uint, req transport.ShipRequest) (*models.Order, error) {
	if strings.TrimSpace(req.Carrier) == "" {
		return nil, Invalid("carrier", "is required")
	}
	if strings.TrimSpace(req.TrackingNumber) == "" {
		return nil, Invalid("trackingNumber", "is required")
	}
	c := s.changeTo(models.OrderShipped)
	c.updates["carrier"] = req.Carrier
	c.updates["tracking_number"] = req.TrackingNumber
	if req.EstimatedDelivery != nil {
		c.updates["estimated_delivery"] = req.EstimatedDelivery.UTC()
	}
	return s.apply(ctx, actor, id, c)
}

func (s *OrderService) Deliver(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	return s.apply(ctx, actor, id, s.changeTo(models.OrderDelivered))
}

func (s *OrderService) Cancel(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	return s.apply(ctx, actor, id, s.changeTo(models.OrderCancelled))
}

func (s *OrderService) Refund(ctx context.Context, actor Actor, id uint) (*models.Order, error) {
	return s.apply(ctx, actor, id, s.changeTo(models.OrderRefunded))
}

// SetStatus is the admin's generic transition, guarded by the same table.
func (s *OrderService) SetStatus(ctx context.Context, actor Actor, id uint, status string) (*models.Order, error) {
	to := models.OrderStatus(status)
	if !IsKnownStatus(to) {
		return nil, Invalid("status", "unknown order status")
	}
	c := s.changeTo(to)
	c.adminOnly = true
	return s.apply(ctx, actor, id, c)
}

// changeTo returns the standard side effects of entering a status.
func (s *OrderService) changeTo(to models.OrderStatus) change {
	c := change{to: to, updates: map[string]any{}}
	switch to {
	case models.OrderShipped:
		c.buyerNote = func(o *models.Order) *models.Notification {
			msg := "Your order is on its way"
			if o.Carrier != "" {
				msg = fmt.Sprintf("Your order shipped with %s, tracking %s", o.Carrier, o.TrackingNumber)
			}
			return userNote(o.UserID, "order_shipped", "Order "+o.OrderNumber+" shipped", msg, orderPayload(o))
		}
	case models.OrderDelivered:
		c.sideEffect = func(ctx context.Context, tx *repo.GormRepo, o *models.Order) error {
			if err := tx.SetTransactionsStatus(ctx, o.ID, models.TxCompleted); err != nil {
				return err
			}
			for _, t := range o.Transactions {
				if err := tx.IncStoreCounter(ctx, t.SellerID, repo.CounterRevenue, t.Amount); err != nil {
					return err
				}
			}
			if o.PaymentMethod == models.MethodCashOnDelivery && o.PaymentStatus == models.PaymentPending {
				return tx.UpdateOrder(ctx, o.ID, map[string]any{"payment_status": models.PaymentPaid})
			}
			return nil
		}
		c.buyerNote = func(o *models.Order) *models.Notification {
			return userNote(o.UserID, "order_delivered", "Order "+o.OrderNumber+" delivered", "Your order was delivered", orderPayload(o))
		}
	case models.OrderCancelled:
		c.sideEffect = func(ctx context.Context, tx *repo.GormRepo, o *models.Order) error {
			if err := tx.SetTransactionsStatus(ctx, o.ID, models.TxFailed); err != nil {
				return err
			}
			return restock(ctx, tx, o.Items, 0, s.Now)
		}
		c.buyerNote = func(o *models.Order) *models.Notification {
			return userNote(o.UserID, "order_cancelled", "Order "+o.OrderNumber+" cancelled", "Your order was cancelled", orderPayload(o))
		}
	case models.OrderRefunded:
		c.adminOnly = true
		// only collected money turns into a refund; an unpaid order keeps its payment status
		c.sideEffect = func(ctx context.Context, tx *repo.GormRepo, o *models.Order) error {
			if o.PaymentStatus != models.PaymentPaid {
				return tx.SetTransactionsStatus(ctx, o.ID, models.TxFailed)
			}
			if err := tx.UpdateOrder(ctx, o.ID, map[string]any{"payment_status": models.PaymentRefunded}); err != nil {
				return err
			}
			return tx.SetTransactionsStatus(ctx, o.ID, models.TxRefunded)
		}
		c.buyerNote = func(o *models.Order) *models.Notification {
			msg := "Your order was closed before any payment was collected"
			if o.PaymentStatus == models.PaymentRefunded {
				msg = fmt.Sprintf("%s %s will be returned to you", money.Format(o.GrandTotal()), strings.ToUpper(o.Currency))
			}
			return userNote(o.UserID, "order_refunded", "Order "+o.OrderNumber+" refunded", msg, orderPayload(o))
		}
	case models.OrderFailed:
		c.adminOnly = true
		c.updates["payment_status"] = models.PaymentFailed
		c.sideEffect = func(ctx context.Context, tx *repo.GormRepo, o *models.Order) error {
			if err := tx.SetTransactionsStatus(ctx, o.ID, models.TxFailed); err != nil {
				return err
			}
			return restock(ctx, tx, o.Items, 0, s.Now)
		}
		c.buyerNote = paymentFailedNote
	}
	return c
}

func paymentFailedNote(o *models.Order) *models.Notification {
	return userNote(o.UserID, "payment_failed", "Payment for "+o.OrderNumber+" failed",
		"We could not collect payment and the order was not placed", orderPayload(o))
}

func (s *OrderService) authorize(actor Actor, o *models.Order, c change) error {
	if actor.IsAdmin() {
		return nil
	}
	if c.adminOnly {
		return fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	if actor.IsSeller() && isParty(o, actor.ID) {
		return nil
	}
	return fmt.Errorf("%w: not a party to order %d", ErrForbidden, o.ID)
}

func (s *OrderService) apply(ctx context.Context, actor Actor, id uint, c change) (*models.Order, error) {
	l := logging.FromContext(ctx).With("op", "order_transition", "order_id", id, "to", c.to, "actor_id", actor.ID)

	var (
		from  models.OrderStatus
		order *models.Order
		notes []*models.Notification
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(actor, o, c); err != nil {
			return err
		}
		from = o.Status
		if !CanTransition(o.Status, c.to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, c.to)
		}

		updates := map[string]any{"status": c.to}
		for k, v := range c.updates {
			updates[k] = v
		}
		ok, err := tx.TransitionOrder(ctx, o.ID, o.Status, updates)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, o.ID)
		}

		if c.sideEffect != nil {
			if err := c.sideEffect(ctx, tx, o); err != nil {
				return err
			}
		}

		if order, err = tx.GetOrder(ctx, o.ID); err != nil {
			return err
		}
		if c.buyerNote != nil {
			notes = append(notes, c.buyerNote(order))
		}
		return tx.CreateNotifications(ctx, notes)
	})
	if err != nil {
		l.Warnw("order_transition_error", "error", err)
		return nil, dbErr(err, "order transition")
	}

	l.Infow("order_transition_success", "from", from)
	s.afterTransition(ctx, actor, order, from, notes)
	return order, nil
}

func (s *OrderService) afterTransition(ctx context.Context, actor Actor, o *models.Order, from models.OrderStatus, notes []*models.Notification) {
	if s.Notify != nil {
		s.Notify.Deliver(ctx, notes...)
	}
	publish(ctx, s.Events, orderEvent(events.TypeOrderStatusChanged, o, map[string]any{"from": from}))
	record(ctx, s.History, history.Entry{
		OrderID: o.ID, OrderNumber: o.OrderNumber, From: string(from), To: string(o.Status),
		ActorID: actor.ID, ActorRole: actor.Role, At: nowOr(s.Now),
	})

	closed := o.Status == models.OrderCancelled || o.Status == models.OrderRefunded
	if closed && o.PaymentIntentID != nil && o.PaymentStatus != models.PaymentPaid && s.Payments != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), paymentCallTimeout)
		defer cancel()
		if err := s.Payments.CancelIntent(cctx, *o.PaymentIntentID); err != nil {
			logging.FromContext(ctx).Warnw("order_transition_error", "reason", "cancel payment intent", "order_id", o.ID, "error", err)
		}
	}
}

// Flag marks an order for review and tells every admin.
func (s *OrderService) Flag(ctx context.Context, actor Actor, id uint, reason string) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, Invalid("reason", "is required")
	}

	var (
		order *models.Order
		note  *models.Notification
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.UpdateOrder(ctx, id, map[string]any{"flagged": true, "flag_reason": reason}); err != nil {
			return err
		}
		var err error
		if order, err = tx.GetOrder(ctx, id); err != nil {
			return err
		}
		payload := orderPayload(order)
		payload["reason"] = reason
		note = adminNote("order_flagged", "Order "+order.OrderNumber+" flagged", reason, payload)
		return tx.CreateNotifications(ctx, []*models.Notification{note})
	})
	if err != nil {
		return nil, dbErr(err, "flag order")
	}

	if s.Notify != nil {
		s.Notify.Deliver(ctx, note)
	}
	record(ctx, s.History, history.Entry{
		OrderID: order.ID, OrderNumber: order.OrderNumber, From: string(order.Status), To: string(order.Status),
		ActorID: actor.ID, ActorRole: actor.Role, Note: "flagged: " + reason, At: nowOr(s.Now),
	})
	return order, nil
}

// Delete soft-deletes an order; rows are never removed.
func (s *OrderService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	if err := s.Repo.SoftDeleteOrder(ctx, id); err != nil {
		return dbErr(err, "delete order")
	}
	logging.FromContext(ctx).Infow("order_deleted", "order_id", id, "actor_id", actor.ID)
	return nil
}

func (s *OrderService) StatusHistory(ctx context.Context, actor Actor, id uint) ([]history.Entry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if s.History == nil {
		return []history.Entry{}, nil
	}
	entries, err := s.History.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: status history: %v", ErrDatabaseUnavailable, err)
	}
	return entries, nil
}
