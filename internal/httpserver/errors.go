package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Skotchmaster/marketplace/internal/service"
)

// statusOf maps the service error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error, status int) map[string]any {
	var (
		he  *echo.HTTPError
		ve  *service.ValidationError
		ce  *service.ConflictError
		ose *service.OutOfStockError
	)
	switch {
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return map[string]any{"error": msg}
	case errors.As(err, &ve):
		return map[string]any{"error": "validation failed", "fields": ve.Fields}
	case errors.As(err, &ce):
		return map[string]any{"error": ce.Message, "field": ce.Field}
	case errors.As(err, &ose):
		return map[string]any{"error": "out of stock", "productId": ose.ProductID}
	case status >= http.StatusInternalServerError:
		return map[string]any{"error": "internal server error"}
	default:
		return map[string]any{"error": err.Error()}
	}
}

// ErrorHandler renders every handler error as JSON. 5xx bodies never carry internal detail.
func ErrorHandler(base *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			base.Errorw("unhandled_error", "status", status, "path", c.Path(), "error", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, errorBody(err, status))
		}
		if werr != nil {
			base.Warnw("error_response_write_failed", "error", werr)
		}
	}
}

// failed logs a handler failure under op and hands err on to ErrorHandler.
func failed(l *zap.SugaredLogger, op string, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		l.Errorw(op+"_error", "status", status, "reason", "internal", "error", err)
	} else {
		l.Warnw(op+"_error", "status", status, "reason", err.Error())
	}
	return err
}
