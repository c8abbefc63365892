package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

type StockHTTP struct {
	Svc *service.StockService
}

// Suggestions lists reorder lines for the calling seller.
func (h *StockHTTP) Suggestions(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock.suggestions")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "stock_suggestions", err)
	}
	out, err := h.Svc.Suggestions(ctx, actor.ID)
	if err != nil {
		return failed(l, "stock_suggestions", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StockHTTP) ListAlerts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock.list_alerts")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "list_alerts", err)
	}
	out, err := h.Svc.ListAlerts(ctx, actor, c.QueryParam("status"))
	if err != nil {
		return failed(l, "list_alerts", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *StockHTTP) ResolveAlert(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock.resolve_alert")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "resolve_alert", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "resolve_alert", err)
	}
	a, err := h.Svc.ResolveAlert(ctx, actor, id)
	if err != nil {
		return failed(l, "resolve_alert", err)
	}
	l.Infow("resolve_alert_success", "alert_id", a.ID)
	return c.JSON(http.StatusOK, a)
}

func (h *StockHTTP) Adjust(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "stock.adjust")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "adjust_stock", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "adjust_stock", err)
	}
	var req transport.StockAdjustRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "adjust_stock", err)
	}
	p, err := h.Svc.AdjustStock(ctx, actor, id, *req.Stock)
	if err != nil {
		return failed(l, "adjust_stock", err)
	}
	l.Infow("adjust_stock_success", "product_id", p.ID, "stock", p.Stock)
	return c.JSON(http.StatusOK, p)
}
