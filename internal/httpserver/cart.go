package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "get_cart", err)
	}
	items, err := h.Svc.GetCart(ctx, actor.ID)
	if err != nil {
		return failed(l, "get_cart", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHTTP) Add(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "add_to_cart", err)
	}
	var req transport.CartAddRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "add_to_cart", err)
	}
	item, err := h.Svc.AddToCart(ctx, actor.ID, req.ProductID, req.Quantity)
	if err != nil {
		return failed(l, "add_to_cart", err)
	}
	l.Infow("add_to_cart_success", "product_id", req.ProductID, "quantity", item.Quantity)
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_quantity")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "set_cart_quantity", err)
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return failed(l, "set_cart_quantity", err)
	}
	var req transport.CartSetRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "set_cart_quantity", err)
	}
	item, err := h.Svc.SetQuantity(ctx, actor.ID, productID, req.Quantity)
	if err != nil {
		return failed(l, "set_cart_quantity", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) Remove(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "remove_from_cart", err)
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return failed(l, "remove_from_cart", err)
	}
	if err := h.Svc.Remove(ctx, actor.ID, productID); err != nil {
		return failed(l, "remove_from_cart", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "clear_cart", err)
	}
	if err := h.Svc.Clear(ctx, actor.ID); err != nil {
		return failed(l, "clear_cart", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Wishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.list")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "list_wishlist", err)
	}
	items, err := h.Svc.Wishlist(ctx, actor.ID)
	if err != nil {
		return failed(l, "list_wishlist", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHTTP) AddToWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.add")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "add_to_wishlist", err)
	}
	var req transport.WishlistAddRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "add_to_wishlist", err)
	}
	if err := h.Svc.AddToWishlist(ctx, actor.ID, req.ProductID); err != nil {
		return failed(l, "add_to_wishlist", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) RemoveFromWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.remove")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "remove_from_wishlist", err)
	}
	productID, err := paramID(c, "productId")
	if err != nil {
		return failed(l, "remove_from_wishlist", err)
	}
	if err := h.Svc.RemoveFromWishlist(ctx, actor.ID, productID); err != nil {
		return failed(l, "remove_from_wishlist", err)
	}
	return c.NoContent(http.StatusNoContent)
}
