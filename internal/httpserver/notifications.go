package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

type NotificationHTTP struct {
	Svc *service.NotificationService
	Hub *notify.Hub
}

func (h *NotificationHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.list")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "list_notifications", err)
	}
	unread, _ := strconv.ParseBool(c.QueryParam("unread"))
	page, size := pageParams(c)

	out, err := h.Svc.List(ctx, actor, unread, page, size)
	if err != nil {
		return failed(l, "list_notifications", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *NotificationHTTP) UnreadCount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.unread_count")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "unread_count", err)
	}
	n, err := h.Svc.UnreadCount(ctx, actor)
	if err != nil {
		return failed(l, "unread_count", err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"unread": n})
}

func (h *NotificationHTTP) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.mark_read")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "mark_read", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "mark_read", err)
	}
	if err := h.Svc.MarkRead(ctx, actor, id); err != nil {
		return failed(l, "mark_read", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHTTP) MarkAllRead(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.mark_all_read")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "mark_all_read", err)
	}
	n, err := h.Svc.MarkAllRead(ctx, actor)
	if err != nil {
		return failed(l, "mark_all_read", err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.delete")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "delete_notification", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "delete_notification", err)
	}
	if err := h.Svc.Delete(ctx, actor, id); err != nil {
		return failed(l, "delete_notification", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Socket upgrades to a WebSocket joined to the caller's room, plus the admin room for admins.
func (h *NotificationHTTP) Socket(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "notification.socket")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "ws_connect", err)
	}
	if err := h.Hub.Serve(c.Response(), c.Request(), actor.ID, actor.Role == tokens.RoleAdmin); err != nil {
		// the upgrader has already written the HTTP error
		l.Warnw("ws_connect_error", "user_id", actor.ID, "error", err)
		return nil
	}
	l.Infow("ws_connect_success", "user_id", actor.ID)
	return nil
}
