package httpserver

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/payment"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

const maxWebhookBody = 64 << 10

type CheckoutHTTP struct {
	Checkout *service.CheckoutService
	Orders   *service.OrderService
	Webhooks payment.WebhookVerifier
}

func (h *CheckoutHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.place_order")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "checkout", err)
	}
	var req transport.CheckoutRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "checkout", err)
	}

	resp, err := h.Checkout.Checkout(ctx, actor.ID, req)
	if err != nil {
		return failed(l, "checkout", err)
	}
	l.Infow("checkout_success", "order_id", resp.OrderID, "order_number", resp.OrderNumber, "total", resp.TotalAmount)
	return c.JSON(http.StatusCreated, resp)
}

func (h *CheckoutHTTP) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.confirm_payment")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "confirm_payment", err)
	}
	var req transport.ConfirmPaymentRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "confirm_payment", err)
	}

	resp, err := h.Orders.ConfirmPaymentFor(ctx, actor, req.PaymentIntentID)
	if err != nil {
		return failed(l, "confirm_payment", err)
	}
	l.Infow("confirm_payment_success", "order_id", resp.ID, "payment_status", resp.PaymentStatus)
	return c.JSON(http.StatusOK, resp)
}

// StripeWebhook verifies the signature before touching any order.
func (h *CheckoutHTTP) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.stripe_webhook")

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		l.Warnw("stripe_webhook_error", "status", 400, "reason", "cannot read body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}

	ev, err := h.Webhooks.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		l.Warnw("stripe_webhook_error", "status", 400, "reason", "signature verification failed", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	if err := h.Orders.HandleWebhook(ctx, ev); err != nil {
		return failed(l, "stripe_webhook", err)
	}
	l.Infow("stripe_webhook_success", "event_id", ev.ID, "event_type", ev.Type)
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
