package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	ServerPort int

	DatabaseURL string

	JWTAccessSecret []byte

	KafkaBrokers []string
	OrderTopic   string

	RedisURL        string
	DashboardTTL    time.Duration
	ElasticURL      string
	ElasticUser     string
	ElasticPassword string
	ProductIndex    string
	MongoURI        string
	MongoDatabase   string

	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentTimeout      time.Duration
	DefaultCurrency     string

	NotifyBridge string

	LowStockCutoff    int
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration

	CheckoutRateLimit float64
	CORSOrigins       []string
	CSRFEnabled       bool
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "marketplace"),
		Env:         EnvDefault("APP_ENV", "development"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:   EnvDefault("KAFKA_ORDER_TOPIC", "order_events"),

		RedisURL:        os.Getenv("REDIS_URL"),
		DashboardTTL:    EnvDurationDefault("DASHBOARD_CACHE_TTL", time.Minute),
		ElasticURL:      os.Getenv("ES_URL"),
		ElasticUser:     os.Getenv("ES_USER"),
		ElasticPassword: os.Getenv("ES_PASSWORD"),
		ProductIndex:    EnvDefault("ES_PRODUCT_INDEX", "products"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   EnvDefault("MONGO_DATABASE", "marketplace"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PaymentTimeout:      EnvDurationDefault("PAYMENT_TIMEOUT", 10*time.Second),
		DefaultCurrency:     strings.ToLower(EnvDefault("DEFAULT_CURRENCY", "usd")),

		NotifyBridge: os.Getenv("NOTIFY_BRIDGE"),

		LowStockCutoff:    EnvIntDefault("LOW_STOCK_CUTOFF", 5),
		ReconcileInterval: EnvDurationDefault("RECONCILE_INTERVAL", 10*time.Minute),
		ReconcileAfter:    EnvDurationDefault("RECONCILE_AFTER", 30*time.Minute),

		CheckoutRateLimit: EnvFloatDefault("CHECKOUT_RATE_LIMIT", 5),
		CORSOrigins:       CSV(os.Getenv("CORS_ORIGINS")),
		CSRFEnabled:       EnvDefault("CSRF_ENABLED", "true") == "true",
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
