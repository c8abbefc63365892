package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "list_orders", err)
	}
	var flagged *bool
	if raw := c.QueryParam("flagged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return failed(l, "list_orders", service.Invalid("flagged", "must be a boolean"))
		}
		flagged = &v
	}
	page, size := pageParams(c)

	out, err := h.Svc.List(ctx, actor, c.QueryParam("status"), flagged, page, size)
	if err != nil {
		return failed(l, "list_orders", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "get_order", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "get_order", err)
	}
	o, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		return failed(l, "get_order", err)
	}
	return c.JSON(http.StatusOK, o)
}

type transitionFunc func(ctx context.Context, actor service.Actor, id uint) (*models.Order, error)

// transition runs one of the bodiless state machine operations.
func (h *OrderHTTP) transition(c echo.Context, op string, fn transitionFunc) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order."+op)

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, op, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, op, err)
	}
	o, err := fn(ctx, actor, id)
	if err != nil {
		return failed(l, op, err)
	}
	l.Infow(op+"_success", "order_id", o.ID, "status", o.Status)
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHTTP) Process(c echo.Context) error {
	return h.transition(c, "process_order", h.Svc.Process)
}

func (h *OrderHTTP) Deliver(c echo.Context) error {
	return h.transition(c, "deliver_order", h.Svc.Deliver)
}

func (h *OrderHTTP) Cancel(c echo.Context) error {
	return h.transition(c, "cancel_order", h.Svc.Cancel)
}

func (h *OrderHTTP) Refund(c echo.Context) error {
	return h.transition(c, "refund_order", h.Svc.Refund)
}

func (h *OrderHTTP) Ship(c echo.Context) error {
	var req transport.ShipRequest
	return h.transition(c, "ship_order", func(ctx context.Context, actor service.Actor, id uint) (*models.Order, error) {
		if err := bind(c, &req); err != nil {
			return nil, err
		}
		return h.Svc.Ship(ctx, actor, id, req)
	})
}

func (h *OrderHTTP) SetStatus(c echo.Context) error {
	var req transport.SetStatusRequest
	return h.transition(c, "set_order_status", func(ctx context.Context, actor service.Actor, id uint) (*models.Order, error) {
		if err := bind(c, &req); err != nil {
			return nil, err
		}
		return h.Svc.SetStatus(ctx, actor, id, req.Status)
	})
}

func (h *OrderHTTP) Flag(c echo.Context) error {
	var req transport.FlagRequest
	return h.transition(c, "flag_order", func(ctx context.Context, actor service.Actor, id uint) (*models.Order, error) {
		if err := bind(c, &req); err != nil {
			return nil, err
		}
		return h.Svc.Flag(ctx, actor, id, req.Reason)
	})
}

func (h *OrderHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.delete")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "delete_order", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "delete_order", err)
	}
	if err := h.Svc.Delete(ctx, actor, id); err != nil {
		return failed(l, "delete_order", err)
	}
	l.Infow("delete_order_success", "order_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *OrderHTTP) History(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.history")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "order_history", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "order_history", err)
	}
	entries, err := h.Svc.StatusHistory(ctx, actor, id)
	if err != nil {
		return failed(l, "order_history", err)
	}
	return c.JSON(http.StatusOK, entries)
}
