package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

type ShippingHTTP struct {
	Svc *service.ShippingService
}

func (h *ShippingHTTP) ListZones(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.list_zones")

	zones, err := h.Svc.ListZones(ctx)
	if err != nil {
		return failed(l, "list_zones", err)
	}
	return c.JSON(http.StatusOK, zones)
}

func (h *ShippingHTTP) CreateZone(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.create_zone")

	var req transport.ZoneRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "create_zone", err)
	}
	z, err := h.Svc.CreateZone(ctx, req)
	if err != nil {
		return failed(l, "create_zone", err)
	}
	l.Infow("create_zone_success", "zone_id", z.ID)
	return c.JSON(http.StatusCreated, z)
}

func (h *ShippingHTTP) UpdateZone(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.update_zone")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "update_zone", err)
	}
	var req transport.ZoneRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "update_zone", err)
	}
	z, err := h.Svc.UpdateZone(ctx, id, req)
	if err != nil {
		return failed(l, "update_zone", err)
	}
	return c.JSON(http.StatusOK, z)
}

func (h *ShippingHTTP) DeleteZone(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.delete_zone")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "delete_zone", err)
	}
	if err := h.Svc.DeleteZone(ctx, id); err != nil {
		return failed(l, "delete_zone", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ShippingHTTP) CreateCarrier(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.create_carrier")

	var req transport.CarrierRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "create_carrier", err)
	}
	cr, err := h.Svc.CreateCarrier(ctx, req)
	if err != nil {
		return failed(l, "create_carrier", err)
	}
	l.Infow("create_carrier_success", "carrier_id", cr.ID, "zone_id", cr.ZoneID)
	return c.JSON(http.StatusCreated, cr)
}

func (h *ShippingHTTP) UpdateCarrier(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.update_carrier")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "update_carrier", err)
	}
	var req transport.CarrierRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "update_carrier", err)
	}
	cr, err := h.Svc.UpdateCarrier(ctx, id, req)
	if err != nil {
		return failed(l, "update_carrier", err)
	}
	return c.JSON(http.StatusOK, cr)
}

func (h *ShippingHTTP) DeleteCarrier(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.delete_carrier")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "delete_carrier", err)
	}
	if err := h.Svc.DeleteCarrier(ctx, id); err != nil {
		return failed(l, "delete_carrier", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Options lists active carriers whose zone covers ?country=XX, cheapest first.
func (h *ShippingHTTP) Options(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "shipping.options")

	out, err := h.Svc.Options(ctx, c.QueryParam("country"))
	if err != nil {
		return failed(l, "shipping_options", err)
	}
	return c.JSON(http.StatusOK, out)
}
