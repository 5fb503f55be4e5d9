package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-coffee-orders/internal/bootstrap"
	"github.com/ariefcatur/go-coffee-orders/internal/config"
	kafkax "github.com/ariefcatur/go-coffee-orders/internal/kafka"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/redisx"
	"github.com/ariefcatur/go-coffee-orders/internal/streaks"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}).
		With(zap.String("service", cfg.App.Name+"-loyalty-worker"))
	defer func() { _ = log.Sync() }()

	if !cfg.Kafka.Enabled {
		log.Fatal("the loyalty worker needs kafka, set COFFEE_KAFKA_ENABLED=true")
	}
	if cfg.Storage.Driver == "memory" {
		log.Warn("memory storage is private to this process, streaks will not reach the api")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := bootstrap.OpenStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("storage", zap.Error(err))
	}
	defer store.Close()

	// Redis
	rdb := redisx.New(redisx.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	// Service
	svc := &streaks.Service{
		Loyalty: loyalty.NewService(store.Loyalty, store.Tx, store.Customers, log),
		Dedup:   redisx.NewDedup(rdb, cfg.Kafka.GroupID),
		Log:     log.Named("streaks"),
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, orders.TopicOrderCreated, cfg.Kafka.Workers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("consumer started",
			zap.String("group", cfg.Kafka.GroupID),
			zap.String("topic", orders.TopicOrderCreated),
			zap.Int("workers", cfg.Kafka.Workers))
		if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	<-done
}
