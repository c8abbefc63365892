package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/money"
	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) IsAdmin() bool  { return a.Role == tokens.RoleAdmin }
func (a Actor) IsSeller() bool { return a.Role == tokens.RoleSeller }

// RevenueStatus is the order status at which revenue is recognized.
const RevenueStatus = models.OrderDelivered

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

func nowOr(f clock) time.Time {
	if f == nil {
		return utcNow()
	}
	return f().UTC()
}

func uptr(v uint) *uint { return &v }

// cents converts an optional major-unit amount, reporting problems against field.
func cents(d *decimal.Decimal, field string) (int64, error) {
	if d == nil {
		return 0, nil
	}
	if d.IsNegative() {
		return 0, Invalid(field, "must not be negative")
	}
	c, err := money.ToCents(*d)
	if err != nil {
		return 0, Invalid(field, "at most two decimal places")
	}
	return c, nil
}

func publish(ctx context.Context, pub events.Publisher, evs ...events.Event) {
	if pub == nil || len(evs) == 0 {
		return
	}
	if err := pub.Publish(ctx, evs...); err != nil {
		logging.FromContext(ctx).Warnw("event_publish_error", "count", len(evs), "type", evs[0].Type, "error", err)
	}
}

func record(ctx context.Context, rec history.Recorder, e history.Entry) {
	if rec == nil {
		return
	}
	if err := rec.Append(ctx, e); err != nil {
		logging.FromContext(ctx).Warnw("history_append_error", "order_id", e.OrderID, "to", e.To, "error", err)
	}
}

func orderEvent(typ string, o *models.Order, extra map[string]any) events.Event {
	data := map[string]any{
		"orderId":       o.ID,
		"orderNumber":   o.OrderNumber,
		"userId":        o.UserID,
		"status":        o.Status,
		"paymentStatus": o.PaymentStatus,
		"totalAmount":   o.TotalAmount,
		"currency":      o.Currency,
	}
	for k, v := range extra {
		data[k] = v
	}
	return events.New(typ, o.OrderNumber, data)
}

func userNote(userID uint, typ, title, msg string, payload map[string]any) *models.Notification {
	return &models.Notification{UserID: uptr(userID), Type: typ, Title: title, Message: msg, Payload: payload}
}

func adminNote(typ, title, msg string, payload map[string]any) *models.Notification {
	return &models.Notification{Type: typ, Title: title, Message: msg, Payload: payload}
}

func orderPayload(o *models.Order) map[string]any {
	return map[string]any{"orderId": o.ID, "orderNumber": o.OrderNumber, "status": o.Status}
}
