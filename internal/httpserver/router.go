package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	middleware "github.com/Skotchmaster/marketplace/pkg/middleware/auth"
	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

type Deps struct {
	Checkout      *CheckoutHTTP
	Orders        *OrderHTTP
	Catalog       *CatalogHTTP
	Stock         *StockHTTP
	Stores        *StoreHTTP
	Cart          *CartHTTP
	Shipping      *ShippingHTTP
	Notifications *NotificationHTTP
	Dashboards    *DashboardHTTP

	JWTSecret []byte
	// CheckoutRate is requests per second per caller; zero disables the limiter.
	CheckoutRate float64
	Ready        func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	if e.Validator == nil {
		e.Validator = NewValidator()
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAuthMiddleware(d.JWTSecret)
	wsAuth := &middleware.AuthMiddleware{JWTSecret: d.JWTSecret, QueryParam: "token"}
	// middleware is attached per route so unknown paths under /api/v1 stay 404
	auth := authMW.RequireAuth
	sellerOrAdmin := authMW.RequireRole(tokens.RoleSeller, tokens.RoleAdmin)
	adminOnly := authMW.RequireAdmin

	e.GET("/ws", d.Notifications.Socket, wsAuth.RequireAuth)

	api := e.Group("/api/v1")
	api.POST("/webhooks/stripe", d.Checkout.StripeWebhook)

	api.GET("/categories", d.Catalog.ListCategories)
	api.GET("/products", d.Catalog.ListProducts)
	api.GET("/products/search", d.Catalog.SearchProducts)
	api.GET("/products/:id", d.Catalog.GetProduct)
	api.GET("/shipping/zones", d.Shipping.ListZones)
	api.GET("/shipping/options", d.Shipping.Options)

	api.POST("/checkout", d.Checkout.PlaceOrder, append([]echo.MiddlewareFunc{auth}, checkoutLimiter(d.CheckoutRate)...)...)
	api.POST("/checkout/confirm", d.Checkout.ConfirmPayment, auth)

	api.GET("/orders", d.Orders.List, auth)
	api.GET("/orders/:id", d.Orders.Get, auth)
	api.GET("/orders/:id/history", d.Orders.History, auth)
	api.POST("/orders/:id/process", d.Orders.Process, auth)
	api.POST("/orders/:id/ship", d.Orders.Ship, auth)
	api.POST("/orders/:id/deliver", d.Orders.Deliver, auth)
	api.POST("/orders/:id/cancel", d.Orders.Cancel, auth)
	api.POST("/orders/:id/refund", d.Orders.Refund, auth)
	api.PATCH("/orders/:id/status", d.Orders.SetStatus, auth)

	api.GET("/cart", d.Cart.Get, auth)
	api.POST("/cart/items", d.Cart.Add, auth)
	api.PUT("/cart/items/:productId", d.Cart.SetQuantity, auth)
	api.DELETE("/cart/items/:productId", d.Cart.Remove, auth)
	api.DELETE("/cart", d.Cart.Clear, auth)

	api.GET("/wishlist", d.Cart.Wishlist, auth)
	api.POST("/wishlist", d.Cart.AddToWishlist, auth)
	api.DELETE("/wishlist/:productId", d.Cart.RemoveFromWishlist, auth)

	api.GET("/notifications", d.Notifications.List, auth)
	api.GET("/notifications/unread-count", d.Notifications.UnreadCount, auth)
	api.POST("/notifications/read-all", d.Notifications.MarkAllRead, auth)
	api.POST("/notifications/:id/read", d.Notifications.MarkRead, auth)
	api.DELETE("/notifications/:id", d.Notifications.Delete, auth)

	api.GET("/me", d.Stores.Me, auth)
	api.PUT("/me", d.Stores.UpsertMe, auth)
	api.GET("/stores/:id", d.Stores.Get, auth)
	api.GET("/dashboard/client", d.Dashboards.Client, auth)

	api.POST("/products", d.Catalog.CreateProduct, sellerOrAdmin)
	api.PATCH("/products/:id", d.Catalog.PatchProduct, sellerOrAdmin)
	api.DELETE("/products/:id", d.Catalog.DeleteProduct, sellerOrAdmin)
	api.PUT("/products/:id/stock", d.Stock.Adjust, sellerOrAdmin)
	api.POST("/stores", d.Stores.Create, sellerOrAdmin)
	api.GET("/stores/me", d.Stores.Mine, sellerOrAdmin)
	api.GET("/stock/suggestions", d.Stock.Suggestions, sellerOrAdmin)
	api.GET("/stock/alerts", d.Stock.ListAlerts, sellerOrAdmin)
	api.POST("/stock/alerts/:id/resolve", d.Stock.ResolveAlert, sellerOrAdmin)
	api.GET("/dashboard/seller", d.Dashboards.Seller, sellerOrAdmin)
	api.GET("/dashboard/revenue", d.Dashboards.Revenue, sellerOrAdmin)

	api.POST("/categories", d.Catalog.CreateCategory, adminOnly)
	api.PUT("/categories/:id", d.Catalog.UpdateCategory, adminOnly)
	api.DELETE("/categories/:id", d.Catalog.DeleteCategory, adminOnly)
	api.POST("/shipping/zones", d.Shipping.CreateZone, adminOnly)
	api.PUT("/shipping/zones/:id", d.Shipping.UpdateZone, adminOnly)
	api.DELETE("/shipping/zones/:id", d.Shipping.DeleteZone, adminOnly)
	api.POST("/shipping/carriers", d.Shipping.CreateCarrier, adminOnly)
	api.PUT("/shipping/carriers/:id", d.Shipping.UpdateCarrier, adminOnly)
	api.DELETE("/shipping/carriers/:id", d.Shipping.DeleteCarrier, adminOnly)
	api.POST("/orders/:id/flag", d.Orders.Flag, adminOnly)
	api.DELETE("/orders/:id", d.Orders.Delete, adminOnly)
	api.GET("/dashboard/admin", d.Dashboards.Admin, adminOnly)
}

// checkoutLimiter throttles checkout per authenticated caller, falling back to the client IP.
func checkoutLimiter(perSecond float64) []echo.MiddlewareFunc {
	if perSecond <= 0 {
		return nil
	}
	return []echo.MiddlewareFunc{echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(perSecond),
			Burst: max(1, int(perSecond)),
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id, ok := middleware.UserID(c); ok {
				return "user:" + strconv.FormatUint(uint64(id), 10), nil
			}
			return "ip:" + c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many checkout attempts")
		},
	})}
}
