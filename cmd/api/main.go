package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velourastyle/storefront-gateway/api/routes"
	"github.com/velourastyle/storefront-gateway/internal/cart"
	"github.com/velourastyle/storefront-gateway/internal/catalog"
	"github.com/velourastyle/storefront-gateway/internal/commerce"
	"github.com/velourastyle/storefront-gateway/internal/customer"
	"github.com/velourastyle/storefront-gateway/internal/identity"
	"github.com/velourastyle/storefront-gateway/internal/orders"
	"github.com/velourastyle/storefront-gateway/internal/payment"
	"github.com/velourastyle/storefront-gateway/internal/remotecart"
	"github.com/velourastyle/storefront-gateway/internal/reviews"
	"github.com/velourastyle/storefront-gateway/internal/wishlist"
	"github.com/velourastyle/storefront-gateway/pkg/config"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/metrics"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
	"github.com/velourastyle/storefront-gateway/pkg/storage"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "gateway"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "gateway",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	cache, err := storage.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		logg.Error(context.Background(), "failed to open local cache", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logg.Error(context.Background(), "error closing local cache", err)
		}
	}()

	shared, err := sharedstore.New(context.Background(), cfg.Shared, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap shared store", err)
		os.Exit(1)
	}
	defer func() {
		if err := shared.Close(); err != nil {
			logg.Error(context.Background(), "error closing shared store", err)
		}
	}()

	commerceClient, err := commerce.New(cfg.Commerce, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap commerce client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	syncMetrics := metrics.NewSyncMetrics(registry)

	catalogSvc, err := catalog.NewService(commerceClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	remoteCart, err := remotecart.NewClient(commerceClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create remote cart client", err)
		os.Exit(1)
	}

	engine, err := cart.NewEngine(cache, shared, remoteCart, catalogSvc, logg, syncMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart engine", err)
		os.Exit(1)
	}

	identitySvc, err := identity.NewService(commerceClient, cache, cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create identity service", err)
		os.Exit(1)
	}

	customerSvc, err := customer.NewService(commerceClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create customer service", err)
		os.Exit(1)
	}

	paymentClient, err := payment.NewClient(context.Background(), cfg.Payment, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment client", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(commerceClient, engine, paymentClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	wishlistSvc, err := wishlist.NewService(shared, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist service", err)
		os.Exit(1)
	}

	badgeCounter, err := wishlist.NewBadgeCounter(shared, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist badge counter", err)
		os.Exit(1)
	}
	defer badgeCounter.Close()

	reviewsSvc, err := reviews.NewService(shared, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reviews service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Shared:   shared,
		Identity: identitySvc,
		Cart:     engine,
		Catalog:  catalogSvc,
		Wishlist: wishlistSvc,
		Badge:    badgeCounter,
		Reviews:  reviewsSvc,
		Customer: customerSvc,
		Orders:   ordersSvc,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting gateway server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "gateway server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down gateway server")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
