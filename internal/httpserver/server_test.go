package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/marketplace/internal/cache"
	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/payment"
	"github.com/Skotchmaster/marketplace/internal/payment/paymenttest"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

var jwtSecret = []byte("http-test-secret")

type stubVerifier struct {
	ev  *payment.WebhookEvent
	err error
}

func (s stubVerifier) ParseWebhook([]byte, string) (*payment.WebhookEvent, error) { return s.ev, s.err }

type testEnv struct {
	e   *echo.Echo
	db  *gorm.DB
	pay *paymenttest.Fake
}

func newTestEnv(t *testing.T, verifier payment.WebhookVerifier, checkoutRate float64) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	r := repo.New(db)
	pay := paymenttest.New()
	ns := notify.NewService(r, notify.Nop{})
	orders := &service.OrderService{Repo: r, Payments: pay, Notify: ns, Events: events.Nop{}, History: history.Nop{}}
	if verifier == nil {
		verifier = payment.Disabled{}
	}

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop().Sugar())
	Register(e, &Deps{
		Checkout: &CheckoutHTTP{
			Checkout: &service.CheckoutService{
				Repo: r, Payments: pay, Notify: ns, Events: events.Nop{}, History: history.Nop{},
				DefaultCurrency: "usd", PaymentTimeout: time.Second,
			},
			Orders:   orders,
			Webhooks: verifier,
		},
		Orders:        &OrderHTTP{Svc: orders},
		Catalog:       &CatalogHTTP{Svc: &service.CatalogService{Repo: r}},
		Stock:         &StockHTTP{Svc: &service.StockService{Repo: r, Notify: ns, Events: events.Nop{}, LowStockCutoff: 5}},
		Stores:        &StoreHTTP{Svc: &service.StoreService{Repo: r}},
		Cart:          &CartHTTP{Svc: &service.CartService{Repo: r}},
		Shipping:      &ShippingHTTP{Svc: &service.ShippingService{Repo: r}},
		Notifications: &NotificationHTTP{Svc: &service.NotificationService{Repo: r}, Hub: notify.NewHub(zap.NewNop().Sugar(), nil)},
		Dashboards:    &DashboardHTTP{Svc: &service.DashboardService{Repo: r, Cache: cache.Nop{}}},
		JWTSecret:     jwtSecret,
		CheckoutRate:  checkoutRate,
		Ready:         func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
	})
	return &testEnv{e: e, db: db, pay: pay}
}

func token(t *testing.T, id uint, role string) string {
	t.Helper()
	tok, err := tokens.SignAccess(id, role, time.Minute, jwtSecret)
	require.NoError(t, err)
	return tok
}

// do sends body as JSON with an optional bearer token and decodes the response into out.
func (env *testEnv) do(t *testing.T, method, path, tok string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (env *testEnv) product(t *testing.T, vendor uint, sku string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{VendorID: vendor, SKU: sku, Name: "Product " + sku, Price: price, Stock: stock, MinThreshold: 1, Active: true}
	require.NoError(t, env.db.Create(p).Error)
	return p
}

var address = map[string]any{
	"fullName": "Ada Buyer", "street": "1 Main St", "city": "Springfield",
	"zipCode": "12345", "country": "US", "email": "ada@example.com",
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, 0)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", "", nil, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", "", nil, nil).Code)
}

func TestRoutes_Authorization(t *testing.T) {
	env := newTestEnv(t, nil, 0)
	client := token(t, 1, tokens.RoleClient)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/categories", "", nil, nil).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/v1/orders", "", nil, nil).Code)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/v1/products", client, map[string]any{}, nil).Code)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/v1/categories", client, map[string]any{"name": "x"}, nil).Code)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/v1/dashboard/admin", client, nil, nil).Code)
}

func TestRoutes_UnknownAPIPathIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil, 0)
	client := token(t, 1, tokens.RoleClient)

	for _, tok := range []string{"", client} {
		require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/no-such-thing", tok, nil, nil).Code)
		require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/orders/1/unknown", tok, map[string]any{}, nil).Code)
	}
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/elsewhere", "", nil, nil).Code)
}

func TestCheckoutAndConfirm(t *testing.T) {
	env := newTestEnv(t, nil, 0)
	buyer := token(t, 1, tokens.RoleClient)
	a := env.product(t, 10, "A", 1000, 5)
	b := env.product(t, 20, "B", 2500, 5)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/cart/items", buyer,
		map[string]any{"productId": a.ID, "quantity": 2}, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/cart/items", buyer,
		map[string]any{"productId": b.ID, "quantity": 1}, nil).Code)

	var placed map[string]any
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", buyer, map[string]any{"shippingAddress": address}, &placed)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.EqualValues(t, 4500, placed["totalAmount"])
	require.NotEmpty(t, placed["clientSecret"])
	intentID := placed["paymentIntentId"].(string)

	var ledger int64
	require.NoError(t, env.db.Model(&models.Transaction{}).Count(&ledger).Error)
	require.EqualValues(t, 2, ledger)

	env.pay.SetStatus(intentID, payment.StatusSucceeded)
	var confirmed map[string]any
	rec = env.do(t, http.MethodPost, "/api/v1/checkout/confirm", buyer, map[string]any{"paymentIntentId": intentID}, &confirmed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "paid", confirmed["paymentStatus"])

	other := token(t, 2, tokens.RoleClient)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/v1/checkout/confirm", other,
		map[string]any{"paymentIntentId": intentID}, nil).Code)
}

func TestCheckout_ErrorBodies(t *testing.T) {
	env := newTestEnv(t, nil, 0)
	buyer := token(t, 1, tokens.RoleClient)
	p := env.product(t, 10, "A", 1000, 1)

	var body map[string]any
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", buyer, map[string]any{
		"cartItems":       []map[string]any{{"productId": p.ID, "quantity": 0}},
		"shippingAddress": address,
	}, &body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body["fields"], "cartItems[0].quantity")

	body = nil
	rec = env.do(t, http.MethodPost, "/api/v1/checkout", buyer, map[string]any{"shippingAddress": address}, &body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, service.ErrEmptyCart.Error(), body["error"])

	body = nil
	rec = env.do(t, http.MethodPost, "/api/v1/checkout", buyer, map[string]any{
		"cartItems":       []map[string]any{{"productId": p.ID, "quantity": 3}},
		"shippingAddress": address,
	}, &body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.EqualValues(t, p.ID, body["productId"])
}

func TestCheckout_RateLimited(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	buyer := token(t, 1, tokens.RoleClient)

	first := env.do(t, http.MethodPost, "/api/v1/checkout", buyer, map[string]any{"shippingAddress": address}, nil)
	require.Equal(t, http.StatusBadRequest, first.Code)
	second := env.do(t, http.MethodPost, "/api/v1/checkout", buyer, map[string]any{"shippingAddress": address}, nil)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestStripeWebhook(t *testing.T) {
	t.Run("bad signature", func(t *testing.T) {
		env := newTestEnv(t, stubVerifier{err: errors.New("no signatures found")}, 0)
		rec := env.do(t, http.MethodPost, "/api/v1/webhooks/stripe", "", map[string]any{}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ignored event", func(t *testing.T) {
		env := newTestEnv(t, stubVerifier{ev: &payment.WebhookEvent{ID: "evt_1", Type: "charge.refunded"}}, 0)
		var body map[string]any
		rec := env.do(t, http.MethodPost, "/api/v1/webhooks/stripe", "", map[string]any{}, &body)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, true, body["received"])
	})

	t.Run("unknown intent", func(t *testing.T) {
		env := newTestEnv(t, stubVerifier{ev: &payment.WebhookEvent{ID: "evt_2", Type: "payment_intent.succeeded", IntentID: "pi_missing"}}, 0)
		rec := env.do(t, http.MethodPost, "/api/v1/webhooks/stripe", "", map[string]any{}, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil, 0)
	buyer := token(t, 1, tokens.RoleClient)
	seller := token(t, 10, tokens.RoleSeller)
	p := env.product(t, 10, "A", 1000, 5)

	var placed map[string]any
	rec := env.do(t, http.MethodPost, "/api/v1/checkout", buyer, map[string]any{
		"cartItems":       []map[string]any{{"productId": p.ID, "quantity": 1}},
		"shippingAddress": address,
		"paymentMethod":   models.MethodCashOnDelivery,
	}, &placed)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	path := "/api/v1/orders/" + jsonID(placed["orderId"])

	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, path+"/process", buyer, nil, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/process", seller, nil, nil).Code)

	var body map[string]any
	rec = env.do(t, http.MethodPost, path+"/ship", seller, map[string]any{"carrier": "DHL"}, &body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body["fields"], "trackingNumber")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/ship", seller,
		map[string]any{"carrier": "DHL", "trackingNumber": "TRK-1"}, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, path+"/deliver", seller, nil, nil).Code)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, path+"/cancel", buyer, nil, nil).Code)
	require.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, path+"/cancel", seller, nil, nil).Code)

	var page map[string]any
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/orders?status=delivered", buyer, nil, &page).Code)
	require.EqualValues(t, 1, page["total"])

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/orders/abc", buyer, nil, nil).Code)
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
