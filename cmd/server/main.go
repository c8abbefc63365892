package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Skotchmaster/marketplace/internal/cache"
	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/httpserver"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/payment"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/search"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/pkg/config"
	"github.com/Skotchmaster/marketplace/pkg/db"
	"github.com/Skotchmaster/marketplace/pkg/logging"
	"github.com/Skotchmaster/marketplace/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/marketplace/pkg/middleware/logging"
)

type paymentGateway interface {
	payment.Provider
	payment.WebhookVerifier
}

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")

	l, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = l.Sync() }()
	l = l.With("service", cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		l.Fatalw("db_init_error", "error", err)
	}
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		l.Fatalw("db_migrate_error", "error", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		l.Fatalw("db_init_error", "error", err)
	}

	r := repo.New(gdb)
	pay := paymentsFrom(cfg, l)
	pub := publisherFrom(cfg, l)
	defer func() { _ = pub.Close() }()
	rec, closeHistory := historyFrom(ctx, cfg, l)
	defer closeHistory()
	idx := indexFrom(cfg, l)
	dashCache, closeCache := cacheFrom(ctx, cfg, l)
	defer closeCache()

	hub := notify.NewHub(l, cfg.CORSOrigins)
	var push notify.Notifier = hub
	if cfg.NotifyBridge == "postgres" {
		bridge := notify.NewPGBridge(sqlDB, hub, l)
		push = bridge
		go func() {
			if err := bridge.Listen(ctx, cfg.DatabaseURL); err != nil {
				l.Errorw("notify_listener_error", "error", err)
			}
		}()
	} else {
		l.Infow("notify_bridge_disabled", "reason", "NOTIFY_BRIDGE is not postgres")
	}
	ns := notify.NewService(r, push)

	orders := &service.OrderService{Repo: r, Payments: pay, Notify: ns, Events: pub, History: rec}
	checkout := &service.CheckoutService{
		Repo: r, Payments: pay, Notify: ns, Events: pub, History: rec,
		DefaultCurrency: cfg.DefaultCurrency, PaymentTimeout: cfg.PaymentTimeout,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.HTTPErrorHandler = httpserver.ErrorHandler(l)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(l))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.CORSOrigins, AllowCredentials: true}))
	} else {
		e.Use(middleware.CORS())
	}
	if cfg.CSRFEnabled {
		cc := csrf.DefaultConfig()
		cc.Secure = cfg.Env == "production"
		cc.SkipPrefixes = []string{"/api/v1/webhooks/", "/ws", "/health/"}
		e.Use(csrf.Middleware(cc))
	}

	httpserver.Register(e, &httpserver.Deps{
		Checkout: &httpserver.CheckoutHTTP{Checkout: checkout, Orders: orders, Webhooks: pay},
		Orders:   &httpserver.OrderHTTP{Svc: orders},
		Catalog:  &httpserver.CatalogHTTP{Svc: &service.CatalogService{Repo: r, SearchIndex: idx}},
		Stock: &httpserver.StockHTTP{Svc: &service.StockService{
			Repo: r, Notify: ns, Events: pub, LowStockCutoff: cfg.LowStockCutoff,
		}},
		Stores:        &httpserver.StoreHTTP{Svc: &service.StoreService{Repo: r}},
		Cart:          &httpserver.CartHTTP{Svc: &service.CartService{Repo: r}},
		Shipping:      &httpserver.ShippingHTTP{Svc: &service.ShippingService{Repo: r}},
		Notifications: &httpserver.NotificationHTTP{Svc: &service.NotificationService{Repo: r}, Hub: hub},
		Dashboards:    &httpserver.DashboardHTTP{Svc: &service.DashboardService{Repo: r, Cache: dashCache}},
		JWTSecret:     cfg.JWTAccessSecret,
		CheckoutRate:  cfg.CheckoutRateLimit,
		Ready:         sqlDB.PingContext,
	})

	go reconcileLoop(ctx, orders, cfg, l)

	go func() {
		addr := ":" + strconv.Itoa(cfg.ServerPort)
		l.Infow("server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalw("server_start_error", "error", err)
		}
	}()

	<-ctx.Done()
	l.Infow("server_shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Errorw("server_shutdown_error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		l.Warnw("db_close_error", "error", err)
	}
	l.Infow("server_stopped")
}

func reconcileLoop(ctx context.Context, orders *service.OrderService, cfg config.Config, l *zap.SugaredLogger) {
	if cfg.ReconcileInterval <= 0 {
		l.Infow("reconcile_disabled")
		return
	}
	t := time.NewTicker(cfg.ReconcileInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			runCtx := logging.IntoContext(ctx, l.With("job", "reconcile"))
			report, err := orders.Reconcile(runCtx, cfg.ReconcileAfter)
			if err != nil {
				l.Errorw("reconcile_error", "error", err)
				continue
			}
			l.Infow("reconcile_success", "checked", report.Checked, "stores", report.Stores)
		}
	}
}

func paymentsFrom(cfg config.Config, l *zap.SugaredLogger) paymentGateway {
	if cfg.StripeSecretKey == "" {
		l.Warnw("payments_disabled", "reason", "STRIPE_SECRET_KEY is empty")
		return payment.Disabled{}
	}
	return payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
}

func publisherFrom(cfg config.Config, l *zap.SugaredLogger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		l.Infow("events_disabled", "reason", "KAFKA_BROKERS is empty")
		return events.Nop{}
	}
	return events.NewProducer(cfg.KafkaBrokers, cfg.OrderTopic)
}

func historyFrom(ctx context.Context, cfg config.Config, l *zap.SugaredLogger) (history.Recorder, func()) {
	if cfg.MongoURI == "" {
		l.Infow("history_disabled", "reason", "MONGO_URI is empty")
		return history.Nop{}, func() {}
	}
	client, err := history.Connect(ctx, cfg.MongoURI)
	if err != nil {
		l.Warnw("history_init_error", "error", err)
		return history.Nop{}, func() {}
	}
	return history.NewMongoRecorder(client, cfg.MongoDatabase), func() {
		_ = client.Disconnect(context.Background())
	}
}

func indexFrom(cfg config.Config, l *zap.SugaredLogger) search.Index {
	if cfg.ElasticURL == "" {
		l.Infow("search_index_disabled", "reason", "ES_URL is empty")
		return nil
	}
	idx, err := search.NewClient(search.Config{
		URL: cfg.ElasticURL, User: cfg.ElasticUser, Password: cfg.ElasticPassword, Index: cfg.ProductIndex,
	})
	if err != nil {
		l.Warnw("search_index_init_error", "error", err)
		return nil
	}
	return idx
}

func cacheFrom(ctx context.Context, cfg config.Config, l *zap.SugaredLogger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		l.Infow("dashboard_cache_disabled", "reason", "REDIS_URL is empty")
		return cache.Nop{}, func() {}
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		l.Warnw("dashboard_cache_init_error", "error", err)
		return cache.Nop{}, func() {}
	}
	return cache.NewRedisCache(client, cfg.DashboardTTL), func() { _ = client.Close() }
}
