package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/pagination"
)

type DashboardHTTP struct {
	Svc *service.DashboardService
}

func (h *DashboardHTTP) Seller(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "dashboard.seller")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "seller_dashboard", err)
	}
	d, err := h.Svc.Seller(ctx, actor.ID)
	if err != nil {
		return failed(l, "seller_dashboard", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DashboardHTTP) Admin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "dashboard.admin")

	d, err := h.Svc.Admin(ctx)
	if err != nil {
		return failed(l, "admin_dashboard", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DashboardHTTP) Client(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "dashboard.client")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "client_dashboard", err)
	}
	d, err := h.Svc.Client(ctx, actor.ID)
	if err != nil {
		return failed(l, "client_dashboard", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DashboardHTTP) Revenue(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "dashboard.revenue")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "revenue_series", err)
	}
	months := pagination.ParseIntDefault(c.QueryParam("months"), 12)
	out, err := h.Svc.RevenueSeries(ctx, actor, months)
	if err != nil {
		return failed(l, "revenue_series", err)
	}
	return c.JSON(http.StatusOK, out)
}
