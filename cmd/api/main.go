package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/localchefbazaar/bazaar/internal/config"
	"github.com/localchefbazaar/bazaar/internal/httpx"
	kafkax "github.com/localchefbazaar/bazaar/internal/kafka"
	"github.com/localchefbazaar/bazaar/internal/orders"
	"github.com/localchefbazaar/bazaar/internal/payments"
	"github.com/localchefbazaar/bazaar/internal/postgres"
	"github.com/localchefbazaar/bazaar/internal/redisx"
	"github.com/localchefbazaar/bazaar/internal/stripex"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store: Postgres kalau DSN di-set, selain itu in-memory
	var (
		store    orders.Store
		accounts orders.AccountLookup
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				log.Fatalf("db migrate: %v", err)
			}
		}
		store, accounts = &orders.Repo{DB: db}, &orders.AccountRepo{DB: db}
	} else {
		log.Printf("POSTGRES_DSN empty, using in-memory store")
		store, accounts = orders.NewMemoryStore(), orders.MemoryAccounts{}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := &redisx.StatusCache{Client: rdb}

	// Kafka producer, satu writer untuk semua topic
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	if cfg.StripeWebhookSecret == "" {
		log.Printf("STRIPE_WEBHOOK_SECRET empty, every webhook will be rejected")
	}
	stripe := stripex.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	svc := &orders.Service{
		Store:       store,
		Accounts:    accounts,
		Producer:    prod,
		Cache:       cache,
		ServiceName: cfg.ServiceName,
	}
	initiator := &payments.Initiator{
		Orders:     svc,
		Processor:  stripe,
		Currency:   cfg.Currency,
		SuccessURL: cfg.SuccessURL(),
		CancelURL:  cfg.CancelURL(),
	}
	webhook := &payments.WebhookHandler{
		Orders:    svc,
		Processor: stripe,
		Marker:    &redisx.Marker{Client: rdb, Service: cfg.ServiceName + "-webhook"},
	}

	router := httpx.NewRouter(cfg.CORSOrigins)
	(&httpx.OrdersHandler{Orders: svc, Cache: cache}).Register(router)
	(&httpx.PaymentsHandler{Checkout: initiator, Webhook: webhook}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("api: %v", err)
	}
}
