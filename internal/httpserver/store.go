package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

type StoreHTTP struct {
	Svc *service.StoreService
}

func (h *StoreHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "store.create")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "create_store", err)
	}
	var req transport.StoreRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "create_store", err)
	}
	st, err := h.Svc.CreateStore(ctx, actor, req)
	if err != nil {
		return failed(l, "create_store", err)
	}
	l.Infow("create_store_success", "store_id", st.ID)
	return c.JSON(http.StatusCreated, st)
}

func (h *StoreHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "store.get")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "get_store", err)
	}
	st, err := h.Svc.GetStore(ctx, id)
	if err != nil {
		return failed(l, "get_store", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *StoreHTTP) Mine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "store.mine")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "my_store", err)
	}
	st, err := h.Svc.MyStore(ctx, actor.ID)
	if err != nil {
		return failed(l, "my_store", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *StoreHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.get")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "get_profile", err)
	}
	u, err := h.Svc.Profile(ctx, actor.ID)
	if err != nil {
		return failed(l, "get_profile", err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *StoreHTTP) UpsertMe(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.upsert")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "upsert_profile", err)
	}
	var req transport.ProfileRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "upsert_profile", err)
	}
	u, err := h.Svc.UpsertProfile(ctx, actor, req)
	if err != nil {
		return failed(l, "upsert_profile", err)
	}
	return c.JSON(http.StatusOK, u)
}
