// Command reconcile runs one payment and store-counter reconciliation sweep and exits.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/history"
	"github.com/Skotchmaster/marketplace/internal/notify"
	"github.com/Skotchmaster/marketplace/internal/payment"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/pkg/config"
	"github.com/Skotchmaster/marketplace/pkg/db"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

func main() {
	cfg := config.Load()
	olderThan := flag.Duration("older-than", cfg.ReconcileAfter, "re-check card payments pending for at least this long")
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the sweep after this long")
	flag.Parse()

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	l, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = l.Sync() }()
	l = l.With("service", cfg.ServiceName, "job", "reconcile")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		l.Fatalw("db_init_error", "error", err)
	}
	defer func() { _ = db.Close(gdb) }()

	var pay payment.Provider = payment.Disabled{}
	if cfg.StripeSecretKey != "" {
		pay = payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		l.Warnw("payments_disabled", "reason", "STRIPE_SECRET_KEY is empty; only store counters will be fixed")
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewProducer(cfg.KafkaBrokers, cfg.OrderTopic)
	}
	defer func() { _ = pub.Close() }()

	r := repo.New(gdb)
	sqlDB, err := gdb.DB()
	if err != nil {
		l.Fatalw("db_init_error", "error", err)
	}
	// sockets live in the server processes; reach them through the bridge
	var push notify.Notifier = notify.Nop{}
	if cfg.NotifyBridge == "postgres" {
		push = notify.NewPGBridge(sqlDB, nil, l)
	}

	orders := &service.OrderService{
		Repo: r, Payments: pay, Notify: notify.NewService(r, push), Events: pub, History: history.Nop{},
	}
	rep, err := orders.Reconcile(logging.IntoContext(ctx, l), *olderThan)
	if err != nil {
		l.Fatalw("reconcile_error", "checked", rep.Checked, "failed", rep.Failed, "error", err)
	}
	l.Infow("reconcile_success", "checked", rep.Checked, "failed", rep.Failed, "stores", rep.Stores)
}
