package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	middleware "github.com/Skotchmaster/marketplace/pkg/middleware/auth"
	"github.com/Skotchmaster/marketplace/pkg/pagination"
)

// actorFrom reads the caller set by the auth middleware.
func actorFrom(c echo.Context) (service.Actor, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return service.Actor{}, service.ErrUnauthenticated
	}
	return service.Actor{ID: id, Role: middleware.Role(c)}, nil
}

func paramID(c echo.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, service.Invalid(name, "must be a positive integer")
	}
	return uint(n), nil
}

func queryID(c echo.Context, name string) (*uint, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return nil, service.Invalid(name, "must be a positive integer")
	}
	id := uint(n)
	return &id, nil
}

func pageParams(c echo.Context) (page, size int) {
	return pagination.ParseIntDefault(c.QueryParam("page"), 1),
		pagination.ParseIntDefault(c.QueryParam("size"), pagination.DefaultPageSize)
}

// bind decodes the body into req and runs the registered validator.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return c.Validate(req)
}
