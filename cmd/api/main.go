package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-coffee-orders/internal/bootstrap"
	"github.com/ariefcatur/go-coffee-orders/internal/config"
	"github.com/ariefcatur/go-coffee-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-coffee-orders/internal/kafka"
	"github.com/ariefcatur/go-coffee-orders/internal/logger"
	"github.com/ariefcatur/go-coffee-orders/internal/loyalty"
	"github.com/ariefcatur/go-coffee-orders/internal/orders"
	"github.com/ariefcatur/go-coffee-orders/internal/promotions"
	"github.com/ariefcatur/go-coffee-orders/internal/redisx"
	"github.com/ariefcatur/go-coffee-orders/internal/stock"
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
		With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := bootstrap.OpenStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("storage", zap.Error(err))
	}
	defer store.Close()

	// Redis
	deps := httpx.Deps{Logger: log, Timeout: cfg.Orders.RequestTimeout}
	if cfg.Redis.Addr != "" {
		rdb := redisx.New(redisx.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, order cache and idempotency keys may fail", zap.Error(err))
		}
		deps.Cache = redisx.NewOrderCache(rdb)
		deps.Idempotency = redisx.NewIdempotency(rdb)
	}

	// Kafka producer
	var (
		publisher orders.Publisher
		stockOpts []stock.Option
		prod      *kafkax.Producer
	)
	if cfg.Kafka.Enabled {
		prod = kafkax.NewProducer(cfg.Kafka.Brokers, 1024, log)
		prod.Start()
		events := kafkax.NewEventPublisher(prod, cfg.App.Name, log)
		publisher = events
		stockOpts = append(stockOpts, stock.WithNotifier(events))
	}

	// Services
	ledger := stock.NewLedger(store.Stock, store.Tx, log, stockOpts...)
	points := loyalty.NewService(store.Loyalty, store.Tx, store.Customers, log)
	promos := promotions.NewService(store.Promotions, store.Tx, log)
	deps.Stock, deps.Loyalty, deps.Promotions = ledger, points, promos
	deps.Orders = orders.NewManager(orders.Deps{
		Orders:     store.Orders,
		Tx:         store.Tx,
		Stock:      ledger,
		Loyalty:    points,
		Promotions: promos,
		Catalog:    store.Catalog,
		Customers:  store.Customers,
		Cafes:      store.Cafes,
		Policy: orders.PointsPolicy{
			PointsPerUnit: cfg.Loyalty.PointsPerUnit,
			PointValue:    cfg.Loyalty.PointValue,
		},
		Publisher: publisher,
		PrepTime:  cfg.Orders.DefaultPrepTime,
		Logger:    log,
	})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           httpx.NewHandler(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// graceful shutdown
	go func() {
		log.Info("http listening", zap.String("addr", cfg.App.HTTPAddr), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close() // flush pending events
	}
}
