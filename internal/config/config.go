package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	AutoMigrate  bool
	RedisAddr    string
	KafkaBrokers []string
	ServiceName  string
	CORSOrigins  []string

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
	ClientURL           string

	ProjectorGroup   string
	ProjectorWorkers int
}

func Load() Config {
	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"), // kosong -> in-memory store
		AutoMigrate:  getbool("POSTGRES_AUTO_MIGRATE", false),
		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		KafkaBrokers: splitCSV(getenv("KAFKA_BROKERS", "kafka:9092")),
		ServiceName:  getenv("SERVICE_NAME", "order-api"),
		CORSOrigins:  splitCSV(getenv("CORS_ORIGINS", "*")),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            strings.ToLower(getenv("PAYMENT_CURRENCY", "usd")),
		ClientURL:           strings.TrimRight(getenv("CLIENT_URL", "http://localhost:5173"), "/"),

		ProjectorGroup:   getenv("PROJECTOR_GROUP", "order-status-projector"),
		ProjectorWorkers: getint("PROJECTOR_WORKERS", 4),
	}
}

// SuccessURL and CancelURL are where the hosted checkout sends the customer back.
func (c Config) SuccessURL() string {
	return c.ClientURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}"
}

func (c Config) CancelURL() string { return c.ClientURL + "/payment-cancelled" }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func getbool(k string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
