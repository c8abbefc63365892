package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/payment"
)

func TestConfirmPayment_SucceededIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 10, 0)
	b := f.product(t, sellerY, "B", 500, 10, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	f.addToCart(t, buyerID, b.ID, 1)
	o := f.placeOrder(t, models.MethodCard)
	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)

	notesBefore := f.count(t, &models.Notification{})

	first, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, first.ID)
	assert.Equal(t, string(models.PaymentPaid), first.PaymentStatus)
	assert.Equal(t, string(models.OrderPending), first.Status)

	notesAfterFirst := f.count(t, &models.Notification{})
	assert.Equal(t, notesBefore+3, notesAfterFirst) // buyer and two sellers

	second, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, notesAfterFirst, f.count(t, &models.Notification{}))
	assert.EqualValues(t, 1, f.count(t, &models.PaymentConfirmation{}))

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	for _, tx := range got.Transactions {
		assert.Equal(t, models.TxPaid, tx.Status)
	}
}

func TestConfirmPayment_FailureRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 3)
	o := f.placeOrder(t, models.MethodCard)
	require.Equal(t, 1, f.reload(t, a).Stock)

	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusCanceled)
	resp, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderFailed), resp.Status)
	assert.Equal(t, string(models.PaymentFailed), resp.PaymentStatus)
	assert.Equal(t, 4, f.reload(t, a).Stock)

	// a replay must not return the stock twice
	_, err = f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, 4, f.reload(t, a).Stock)

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxFailed, got.Transactions[0].Status)
}

func TestConfirmPayment_FreshIntentIsNotAFailure(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	o := f.placeOrder(t, models.MethodCard)

	// the fake starts every intent in requires_payment_method
	resp, err := f.orders.ConfirmPayment(context.Background(), *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderPending), resp.Status)
	assert.Equal(t, string(models.PaymentPending), resp.PaymentStatus)
	assert.Zero(t, f.count(t, &models.PaymentConfirmation{}))
	assert.Equal(t, 3, f.reload(t, a).Stock)
}

func TestConfirmPayment_DeclineThenSuccessOnSameIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 3)
	o := f.placeOrder(t, models.MethodCard)

	f.pay.Decline(*o.PaymentIntentID, "Your card was declined.")
	resp, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderFailed), resp.Status)
	assert.Equal(t, string(models.PaymentFailed), resp.PaymentStatus)
	assert.Equal(t, 4, f.reload(t, a).Stock)

	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)
	resp, err = f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderPending), resp.Status)
	assert.Equal(t, string(models.PaymentPaid), resp.PaymentStatus)
	assert.Equal(t, 1, f.reload(t, a).Stock)
	assert.EqualValues(t, 2, f.count(t, &models.PaymentConfirmation{}, "payment_intent_id = ?", *o.PaymentIntentID))

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, got.Flagged)
	assert.Equal(t, models.TxPaid, got.Transactions[0].Status)

	// replaying either outcome changes nothing
	resp, err = f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.PaymentPaid), resp.PaymentStatus)
	assert.Equal(t, 1, f.reload(t, a).Stock)
}

func TestConfirmPayment_SuccessAfterDeclineWithoutStockOwesRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 3)
	o := f.placeOrder(t, models.MethodCard)

	f.pay.Decline(*o.PaymentIntentID, "insufficient funds")
	_, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", a.ID).Update("stock", 1).Error)

	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)
	resp, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderFailed), resp.Status)
	assert.Equal(t, string(models.PaymentPaid), resp.PaymentStatus)
	assert.Equal(t, 1, f.reload(t, a).Stock)

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Flagged)
	assert.Contains(t, got.FlagReason, "refund owed")
	assert.Equal(t, models.TxFailed, got.Transactions[0].Status)
	assert.EqualValues(t, 1, f.count(t, &models.Notification{}, "user_id IS NULL AND type = ?", "refund_required"))
}

func TestConfirmPayment_FailureAfterPaymentIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	o := f.placeOrder(t, models.MethodCard)

	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)
	_, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)

	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusCanceled)
	resp, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderPending), resp.Status)
	assert.Equal(t, string(models.PaymentPaid), resp.PaymentStatus)
	assert.Equal(t, 3, f.reload(t, a).Stock)

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxPaid, got.Transactions[0].Status)
}

func TestHandleWebhook_SucceededAfterCancelOwesRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 2)
	o := f.placeOrder(t, models.MethodCard)

	_, err := f.orders.Cancel(ctx, seller, o.ID)
	require.NoError(t, err)
	require.Equal(t, 4, f.reload(t, a).Stock)

	// the buyer's charge landed before the cancellation reached the provider
	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)
	require.NoError(t, f.orders.HandleWebhook(ctx, &payment.WebhookEvent{ID: "evt_1", Type: "payment_intent.succeeded", IntentID: *o.PaymentIntentID}))

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.True(t, got.Flagged)
	assert.Equal(t, "payment received after the order was cancelled; refund owed", got.FlagReason)
	assert.Equal(t, models.TxFailed, got.Transactions[0].Status)
	assert.Equal(t, 4, f.reload(t, a).Stock)

	admins := f.push.ForAdmins()
	require.NotEmpty(t, admins)
	assert.Equal(t, "refund_required", admins[len(admins)-1].Type)
	for _, n := range f.push.ForUser(buyerID) {
		assert.NotEqual(t, "payment_succeeded", n.Type)
	}
}

func TestConfirmPayment_SuccessAfterAdminFailureOwesRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	o := f.placeOrder(t, models.MethodCard)

	_, err := f.orders.SetStatus(ctx, admin, o.ID, string(models.OrderFailed))
	require.NoError(t, err)

	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)
	resp, err := f.orders.ConfirmPayment(ctx, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderFailed), resp.Status)
	assert.Equal(t, string(models.PaymentPaid), resp.PaymentStatus)
	assert.Equal(t, 4, f.reload(t, a).Stock)

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Flagged)
	assert.Equal(t, models.TxFailed, got.Transactions[0].Status)
}

func TestHandleWebhook_PaymentFailedEventFailsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	o := f.placeOrder(t, models.MethodCard)

	// the intent itself still reads requires_payment_method with no error attached
	require.NoError(t, f.orders.HandleWebhook(ctx, &payment.WebhookEvent{ID: "evt_1", Type: "payment_intent.payment_failed", IntentID: *o.PaymentIntentID}))

	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFailed, got.Status)
	assert.Equal(t, models.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, 4, f.reload(t, a).Stock)
}

func TestConfirmPayment_NonTerminalIntentChangesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	o := f.placeOrder(t, models.MethodCard)
	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusProcessing)

	resp, err := f.orders.ConfirmPayment(context.Background(), *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderPending), resp.Status)
	assert.Equal(t, string(models.PaymentPending), resp.PaymentStatus)
	assert.Zero(t, f.count(t, &models.PaymentConfirmation{}))
}

func TestConfirmPayment_UnknownIntent(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.ConfirmPayment(context.Background(), "pi_missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmPaymentFor_OnlyBuyerOrAdmin(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	o := f.placeOrder(t, models.MethodCard)
	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)

	_, err := f.orders.ConfirmPaymentFor(context.Background(), seller, *o.PaymentIntentID)
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := f.orders.ConfirmPaymentFor(context.Background(), buyer, *o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, string(models.PaymentPaid), resp.PaymentStatus)
}

func TestHandleWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, sellerX, "A", 1000, 4, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	o := f.placeOrder(t, models.MethodCard)
	f.pay.SetStatus(*o.PaymentIntentID, payment.StatusSucceeded)

	require.NoError(t, f.orders.HandleWebhook(ctx, &payment.WebhookEvent{ID: "evt_1", Type: "charge.refunded", IntentID: *o.PaymentIntentID}))
	assert.Zero(t, f.count(t, &models.PaymentConfirmation{}))

	require.NoError(t, f.orders.HandleWebhook(ctx, &payment.WebhookEvent{ID: "evt_2", Type: "payment_intent.succeeded", IntentID: *o.PaymentIntentID}))
	got, err := f.repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)

	err = f.orders.HandleWebhook(ctx, &payment.WebhookEvent{ID: "evt_3", Type: "payment_intent.succeeded"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store(t, sellerX)
	a := f.product(t, sellerX, "A", 1000, 10, 0)
	f.addToCart(t, buyerID, a.ID, 1)
	paid := f.placeOrder(t, models.MethodCard)
	f.addToCart(t, buyerID, a.ID, 1)
	waiting := f.placeOrder(t, models.MethodCard)
	f.pay.SetStatus(*paid.PaymentIntentID, payment.StatusSucceeded)
	f.pay.SetStatus(*waiting.PaymentIntentID, payment.StatusProcessing)

	// drift the counter so the sweep has something to fix
	require.NoError(t, f.db.Model(&models.Store{}).Where("seller_id = ?", sellerX).Update("order_count", 42).Error)

	f.orders.Now = func() time.Time { return time.Now().Add(time.Hour) }
	rep, err := f.orders.Reconcile(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Checked)
	assert.Zero(t, rep.Failed)
	assert.EqualValues(t, 1, rep.Stores)

	got, err := f.repo.GetOrder(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	got, err = f.repo.GetOrder(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)

	st, err := f.repo.GetStoreBySeller(ctx, sellerX)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.OrderCount)
	assert.EqualValues(t, 1, st.ProductCount)

	// fresh orders are left alone
	f.orders.Now = nil
	rep, err = f.orders.ReconcilePayments(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, rep.Checked)
}
