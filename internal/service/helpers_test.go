package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/payment/paymenttest"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/tokens"
)

const (
	buyerID   uint = 1
	sellerX   uint = 10
	sellerY   uint = 20
	adminID   uint = 99
	otherUser uint = 2
)

var (
	buyer  = Actor{ID: buyerID, Role: tokens.RoleClient}
	seller = Actor{ID: sellerX, Role: tokens.RoleSeller}
	admin  = Actor{ID: adminID, Role: tokens.RoleAdmin}
)

func InitTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type capturePublisher struct {
	mu  sync.Mutex
	evs []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, evs...)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.evs))
	for _, e := range p.evs {
		out = append(out, e.Type)
	}
	return out
}

type memHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (h *memHistory) Append(_ context.Context, e history.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return nil
}

func (h *memHistory) List(_ context.Context, orderID uint) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []history.Entry{}
	for _, e := range h.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fixture struct {
	db       *gorm.DB
	repo     *repo.GormRepo
	pay      *paymenttest.Fake
	push     *notify.Recorder
	events   *capturePublisher
	history  *memHistory
	checkout *CheckoutService
	orders   *OrderService
	stock    *StockService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := InitTestDB(t)
	r := repo.New(db)
	f := &fixture{
		db:      db,
		repo:    r,
		pay:     paymenttest.New(),
		push:    notify.NewRecorder(),
		events:  &capturePublisher{},
		history: &memHistory{},
	}
	ns := notify.NewService(r, f.push)
	f.checkout = &CheckoutService{
		Repo: r, Payments: f.pay, Notify: ns, Events: f.events, History: f.history,
		DefaultCurrency: "usd", PaymentTimeout: time.Second,
	}
	f.orders = &OrderService{Repo: r, Payments: f.pay, Notify: ns, Events: f.events, History: f.history}
	f.stock = &StockService{Repo: r, Notify: ns, Events: f.events, LowStockCutoff: 5}
	return f
}

func (f *fixture) product(t *testing.T, vendor uint, sku string, price int64, stock, threshold int) *models.Product {
	t.Helper()
	p := &models.Product{
		VendorID: vendor, SKU: sku, Name: "Product " + sku,
		Price: price, Stock: stock, MinThreshold: threshold, Active: true,
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) store(t *testing.T, sellerID uint) *models.Store {
	t.Helper()
	s := &models.Store{SellerID: sellerID, Name: "Store"}
	require.NoError(t, f.db.Create(s).Error)
	return s
}

func (f *fixture) addToCart(t *testing.T, userID, productID uint, qty int) {
	t.Helper()
	require.NoError(t, f.repo.AddToCart(context.Background(), &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}))
}

func address() transport.ShippingAddress {
	return transport.ShippingAddress{
		FullName: "Ada Buyer", Street: "1 Main St", City: "Springfield", ZipCode: "12345",
		Country: "US", Email: "ada@example.com",
	}
}

// placeOrder checks out the buyer's cart with the given payment method.
func (f *fixture) placeOrder(t *testing.T, method string) *models.Order {
	t.Helper()
	resp, err := f.checkout.Checkout(context.Background(), buyerID, transport.CheckoutRequest{
		ShippingAddress: address(),
		PaymentMethod:   method,
	})
	require.NoError(t, err)
	o, err := f.repo.GetOrder(context.Background(), resp.OrderID)
	require.NoError(t, err)
	return o
}

func (f *fixture) count(t *testing.T, model any, where ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) reload(t *testing.T, p *models.Product) *models.Product {
	t.Helper()
	var out models.Product
	require.NoError(t, f.db.Unscoped().First(&out, p.ID).Error)
	return &out
}
