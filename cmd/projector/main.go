package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/localchefbazaar/bazaar/internal/config"
	kafkax "github.com/localchefbazaar/bazaar/internal/kafka"
	"github.com/localchefbazaar/bazaar/internal/orders"
	"github.com/localchefbazaar/bazaar/internal/projector"
	"github.com/localchefbazaar/bazaar/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Marker: &redisx.Marker{Client: rdb, Service: cfg.ProjectorGroup},
		Cache:  &redisx.StatusCache{Client: rdb},
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.Topics, cfg.ProjectorWorkers)
	log.Printf("projector started: group=%s topics=%v workers=%d", cfg.ProjectorGroup, orders.Topics, cfg.ProjectorWorkers)
	if err := cons.Start(ctx, svc.HandleEvent); err != nil {
		log.Fatalf("consumer exit: %v", err)
	}
	log.Println("projector stopped")
}
