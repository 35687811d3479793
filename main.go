package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/solemates/commerce-backend/internal/config"
	httpdelivery "github.com/solemates/commerce-backend/internal/delivery/http"
	"github.com/solemates/commerce-backend/internal/entity"
	"github.com/solemates/commerce-backend/internal/gateway"
	"github.com/solemates/commerce-backend/internal/inventory"
	"github.com/solemates/commerce-backend/internal/logger"
	"github.com/solemates/commerce-backend/internal/messaging"
	"github.com/solemates/commerce-backend/internal/repository/postgres"
	"github.com/solemates/commerce-backend/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	// --- Database ---
	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	orderStore := postgres.NewOrderStore(db)
	productStore := postgres.NewProductStore(db)
	siteConfigStore := postgres.NewSiteConfigStore(db)
	couponStore := postgres.NewCouponStore(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := productStore.Seed(ctx, seedProducts()); err != nil {
		slog.Error("Failed to seed products", "err", err)
		os.Exit(1)
	}

	// --- Broker ---
	var broker *messaging.Broker
	if cfg.Broker == "channel" {
		broker = messaging.NewChannelBroker()
		slog.Info("Using in-process event broker")
	} else {
		broker, err = messaging.NewKafkaBroker(cfg.KafkaBrokers, cfg.ConsumerGroup)
		if err != nil {
			slog.Error("Failed to connect to kafka", "err", err)
			os.Exit(1)
		}
		slog.Info("Connected to kafka", "brokers", cfg.KafkaBrokers)
	}
	defer broker.Close()

	// --- Inventory ---
	var counter inventory.ReservationCounter
	if cfg.RedisAddr != "" {
		counter = inventory.NewRedisCounter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		slog.Info("Using redis reservation counter", "addr", cfg.RedisAddr)
	} else {
		counter = inventory.NewMemoryCounter()
	}
	guard := inventory.NewGuard(productStore, counter, postgres.NewReservationStore(db))

	// --- Services ---
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAccessToken)
	ledger := service.NewLedger(orderStore, broker)
	reconciler := service.NewReconciler(ledger)
	checkout := service.NewCheckout(productStore, couponStore, guard, ledger, gw,
		cfg.BackendURL+"/api/payment/webhook",
		gateway.BackURLs{
			Success: cfg.FrontendURL + "/success.html",
			Failure: cfg.FrontendURL + "/failure.html",
			Pending: cfg.FrontendURL + "/pending.html",
		})

	// Consumer: order lifecycle events -> commit/release stock reservations.
	stockConsumer := service.NewStockConsumer(guard)
	go consumeOrderEvents(ctx, cancel, broker, stockConsumer.Handle)

	// --- HTTP API ---
	handler := httpdelivery.NewHandler(checkout, ledger, reconciler, gw,
		productStore, siteConfigStore, couponStore)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpdelivery.EnableCORS(mux),
	}

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "err", err)
	}
}

func consumeOrderEvents(ctx context.Context, cancel context.CancelFunc, sub messaging.Subscriber, handle messaging.Handler) {
	if err := sub.Consume(ctx, messaging.TopicOrderEvents, handle); err != nil {
		slog.Error("Stock consumer stopped", "err", err)
		cancel()
	}
}

func seedProducts() []entity.Product {
	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	now := time.Now()
	return []entity.Product{
		{ID: "shoe-runner-01", Name: "Street Runner", Description: "Lightweight daily trainer",
			Price: price("299.90"), OldPrice: price("349.90"), Category: "running", Stock: 25, Visible: true, CreatedAt: now},
		{ID: "shoe-classic-02", Name: "Classic Court", Description: "Leather court sneaker",
			Price: price("259.90"), Category: "casual", Stock: 40, Visible: true, CreatedAt: now},
		{ID: "shoe-trail-03", Name: "Trail Grip", Description: "All-terrain trail shoe",
			Price: price("399.90"), Category: "trail", Stock: 12, Visible: true, CreatedAt: now},
	}
}
