package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/payment"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/money"
)

const (
	paymentCallTimeout = 10 * time.Second
	reconcileBatch     = 100
)

const (
	outcomePaid   = "paid"
	outcomeFailed = "failed"
)

// outcomeFor maps an intent onto a ledger outcome. A fresh intent also sits in
// requires_payment_method, so that status only fails the order after a decline.
func outcomeFor(in *payment.Intent, declined bool) string {
	switch in.Status {
	case payment.StatusSucceeded:
		return outcomePaid
	case payment.StatusCanceled:
		return outcomeFailed
	case payment.StatusRequiresPaymentMethod:
		if declined || in.LastPaymentError != "" {
			return outcomeFailed
		}
	}
	return ""
}

// ConfirmPaymentFor is ConfirmPayment restricted to the order's buyer or an admin.
func (s *OrderService) ConfirmPaymentFor(ctx context.Context, actor Actor, intentID string) (*transport.ConfirmPaymentResponse, error) {
	o, err := s.Repo.GetOrderByIntent(ctx, intentID)
	if err != nil {
		return nil, dbErr(err, "order for payment intent")
	}
	if !actor.IsAdmin() && o.UserID != actor.ID {
		return nil, fmt.Errorf("%w: order %d", ErrForbidden, o.ID)
	}
	return s.ConfirmPayment(ctx, intentID)
}

// ConfirmPayment reconciles an order with its payment intent. Each outcome is
// applied at most once per intent; repeated calls return the current state.
func (s *OrderService) ConfirmPayment(ctx context.Context, intentID string) (*transport.ConfirmPaymentResponse, error) {
	return s.confirm(ctx, intentID, false)
}

func (s *OrderService) confirm(ctx context.Context, intentID string, declined bool) (*transport.ConfirmPaymentResponse, error) {
	l := logging.FromContext(ctx).With("op", "confirm_payment", "payment_intent_id", intentID)
	if intentID == "" {
		return nil, Invalid("paymentIntentId", "is required")
	}

	o, err := s.Repo.GetOrderByIntent(ctx, intentID)
	if err != nil {
		return nil, dbErr(err, "order for payment intent")
	}
	if s.Payments == nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, payment.ErrNotConfigured)
	}

	pctx, cancel := context.WithTimeout(ctx, paymentCallTimeout)
	intent, err := s.Payments.GetIntent(pctx, intentID)
	cancel()
	if err != nil {
		l.Errorw("confirm_payment_error", "reason", "retrieve intent", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	outcome := outcomeFor(intent, declined)
	if outcome == "" {
		l.Infow("confirm_payment_noop", "intent_status", intent.Status)
		return confirmResponse(o), nil
	}

	var (
		applied bool
		from    = o.Status
		notes   []*models.Notification
	)
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		inserted, err := tx.InsertConfirmation(ctx, &models.PaymentConfirmation{
			PaymentIntentID: intentID,
			OrderID:         o.ID,
			Outcome:         outcome,
			ProcessedAt:     nowOr(s.Now),
		})
		if err != nil || !inserted {
			return err
		}

		cur, err := tx.GetOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if outcome == outcomeFailed && cur.PaymentStatus == models.PaymentPaid {
			// collected money is never written back to failed
			return nil
		}
		applied = true
		from = cur.Status

		if outcome == outcomePaid {
			notes, err = s.applyPaid(ctx, tx, cur)
		} else {
			notes, err = s.applyFailed(ctx, tx, cur)
		}
		if err != nil {
			return err
		}
		if o, err = tx.GetOrder(ctx, cur.ID); err != nil {
			return err
		}
		return tx.CreateNotifications(ctx, notes)
	})
	if err != nil {
		l.Errorw("confirm_payment_error", "reason", "apply outcome", "error", err)
		return nil, dbErr(err, "confirm payment")
	}

	if !applied {
		cur, err := s.Repo.GetOrder(ctx, o.ID)
		if err != nil {
			return nil, dbErr(err, "order")
		}
		l.Infow("confirm_payment_duplicate", "order_id", cur.ID)
		return confirmResponse(cur), nil
	}

	l.Infow("confirm_payment_success", "order_id", o.ID, "outcome", outcome, "status", o.Status)
	if s.Notify != nil {
		s.Notify.Deliver(ctx, notes...)
	}
	publish(ctx, s.Events, orderEvent(events.TypePaymentConfirmed, o, map[string]any{
		"outcome": outcome, "paymentIntentId": intentID,
	}))
	if from != o.Status {
		record(ctx, s.History, history.Entry{
			OrderID: o.ID, OrderNumber: o.OrderNumber, From: string(from), To: string(o.Status),
			ActorRole: "system", Note: "payment " + outcome, At: nowOr(s.Now),
		})
	}
	return confirmResponse(o), nil
}

// applyPaid settles the ledger of a live order. A failed order whose card was
// declined earlier is reopened when its stock is still there. Any other closed
// order keeps its ledger and is flagged for a refund instead.
func (s *OrderService) applyPaid(ctx context.Context, tx *repo.GormRepo, o *models.Order) ([]*models.Notification, error) {
	var notes []*models.Notification
	switch o.Status {
	case models.OrderCancelled, models.OrderFailed, models.OrderRefunded:
		reopened, alertNotes, err := s.reopenDeclined(ctx, tx, o)
		if err != nil {
			return nil, err
		}
		if !reopened {
			return s.refundOwed(ctx, tx, o)
		}
		notes = alertNotes
	}

	if err := tx.UpdateOrder(ctx, o.ID, map[string]any{"payment_status": models.PaymentPaid}); err != nil {
		return nil, err
	}
	if err := tx.SetTransactionsStatus(ctx, o.ID, models.TxPaid); err != nil {
		return nil, err
	}
	payload := orderPayload(o)
	notes = append(notes,
		userNote(o.UserID, "payment_succeeded", "Payment received for "+o.OrderNumber,
			fmt.Sprintf("We received %s %s", money.Format(o.GrandTotal()), o.Currency), payload))
	for _, t := range o.Transactions {
		notes = append(notes, userNote(t.SellerID, "order_paid", "Order "+o.OrderNumber+" paid",
			fmt.Sprintf("Your share of %s %s is confirmed", money.Format(t.Amount), o.Currency), payload))
	}
	return notes, nil
}

// reopenDeclined moves an order failed by a card decline back to pending and
// reserves its items again. It reports false when the failure had another
// cause or some item can no longer be covered.
func (s *OrderService) reopenDeclined(ctx context.Context, tx *repo.GormRepo, o *models.Order) (bool, []*models.Notification, error) {
	if o.Status != models.OrderFailed || o.PaymentIntentID == nil {
		return false, nil, nil
	}
	declined, err := tx.HasConfirmation(ctx, *o.PaymentIntentID, outcomeFailed)
	if err != nil || !declined {
		return false, nil, err
	}

	products := make(map[uint]*models.Product, len(o.Items))
	for _, it := range o.Items {
		p, err := tx.GetProduct(ctx, it.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, nil
		}
		if err != nil {
			return false, nil, err
		}
		if !p.Active || p.Stock < it.Quantity {
			return false, nil, nil
		}
		products[p.ID] = p
	}

	var notes []*models.Notification
	for _, it := range o.Items {
		newStock, ok, err := tx.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, nil, &OutOfStockError{ProductID: it.ProductID, Requested: it.Quantity}
		}
		p := products[it.ProductID]
		p.Stock = newStock
		if a := EvaluateAlert(p, newStock); a != nil {
			if err := tx.CreateAlert(ctx, a); err != nil {
				return false, nil, err
			}
			notes = append(notes, alertNote(p, a))
		}
	}

	ok, err := tx.TransitionOrder(ctx, o.ID, models.OrderFailed, map[string]any{"status": models.OrderPending})
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, fmt.Errorf("%w: order %d changed concurrently", ErrInvalidTransition, o.ID)
	}
	return true, notes, nil
}

// refundOwed records money collected for a closed order and asks an admin to return it.
func (s *OrderService) refundOwed(ctx context.Context, tx *repo.GormRepo, o *models.Order) ([]*models.Notification, error) {
	reason := fmt.Sprintf("payment received after the order was %s; refund owed", o.Status)
	if err := tx.UpdateOrder(ctx, o.ID, map[string]any{
		"payment_status": models.PaymentPaid,
		"flagged":        true,
		"flag_reason":    reason,
	}); err != nil {
		return nil, err
	}
	payload := orderPayload(o)
	payload["reason"] = reason
	payload["amount"] = o.GrandTotal()
	return []*models.Notification{
		adminNote("refund_required", "Refund owed on "+o.OrderNumber,
			fmt.Sprintf("%s %s was collected after the order was %s", money.Format(o.GrandTotal()), strings.ToUpper(o.Currency), o.Status), payload),
	}, nil
}

// applyFailed fails a pending order and returns its stock. Orders that already
// moved on only record the payment failure.
func (s *OrderService) applyFailed(ctx context.Context, tx *repo.GormRepo, o *models.Order) ([]*models.Notification, error) {
	updates := map[string]any{"payment_status": models.PaymentFailed}
	if o.Status == models.OrderPending {
		updates["status"] = models.OrderFailed
		ok, err := tx.TransitionOrder(ctx, o.ID, models.OrderPending, updates)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := restock(ctx, tx, o.Items, 0, s.Now); err != nil {
				return nil, err
			}
		}
	} else if err := tx.UpdateOrder(ctx, o.ID, updates); err != nil {
		return nil, err
	}
	if err := tx.SetTransactionsStatus(ctx, o.ID, models.TxFailed); err != nil {
		return nil, err
	}
	return []*models.Notification{paymentFailedNote(o)}, nil
}

func confirmResponse(o *models.Order) *transport.ConfirmPaymentResponse {
	return &transport.ConfirmPaymentResponse{ID: o.ID, Status: string(o.Status), PaymentStatus: string(o.PaymentStatus)}
}

// HandleWebhook applies a verified provider event. Unrelated event types are ignored.
func (s *OrderService) HandleWebhook(ctx context.Context, ev *payment.WebhookEvent) error {
	l := logging.FromContext(ctx).With("op", "payment_webhook", "event_id", ev.ID, "event_type", ev.Type)
	switch ev.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		l.Infow("payment_webhook_ignored")
		return nil
	}
	if ev.IntentID == "" {
		return Invalid("data.object.id", "missing payment intent id")
	}
	_, err := s.confirm(ctx, ev.IntentID, ev.Type == "payment_intent.payment_failed")
	return err
}

type ReconcileReport struct {
	Checked int   `json:"checked"`
	Failed  int   `json:"failed"`
	Stores  int64 `json:"stores"`
}

// ReconcilePayments re-confirms card orders whose payment is still pending after olderThan.
func (s *OrderService) ReconcilePayments(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	l := logging.FromContext(ctx).With("op", "reconcile_payments")
	var rep ReconcileReport

	orders, err := s.Repo.StalePendingPayments(ctx, nowOr(s.Now).Add(-olderThan), reconcileBatch)
	if err != nil {
		return rep, dbErr(err, "stale payments")
	}
	for _, o := range orders {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		rep.Checked++
		if _, err := s.ConfirmPayment(ctx, *o.PaymentIntentID); err != nil {
			rep.Failed++
			l.Warnw("reconcile_payment_error", "order_id", o.ID, "error", err)
		}
	}
	l.Infow("reconcile_payments_done", "checked", rep.Checked, "failed", rep.Failed)
	return rep, nil
}

// ReconcileStoreCounters recomputes denormalized store counters from source tables.
func (s *OrderService) ReconcileStoreCounters(ctx context.Context) (int64, error) {
	n, err := s.Repo.RecomputeStoreCounters(ctx, RevenueStatus)
	if err != nil {
		return 0, dbErr(err, "recompute store counters")
	}
	logging.FromContext(ctx).Infow("reconcile_stores_done", "stores", n)
	return n, nil
}

// Reconcile runs both sweeps.
func (s *OrderService) Reconcile(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	rep, err := s.ReconcilePayments(ctx, olderThan)
	if err != nil {
		return rep, err
	}
	rep.Stores, err = s.ReconcileStoreCounters(ctx)
	return rep, err
}
