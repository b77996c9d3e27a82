package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/safar/go-price-resolver/internal/api"
	"github.com/safar/go-price-resolver/internal/cache"
	"github.com/safar/go-price-resolver/internal/config"
	"github.com/safar/go-price-resolver/internal/database"
	"github.com/safar/go-price-resolver/internal/logger"
	"github.com/safar/go-price-resolver/internal/metrics"
	"github.com/safar/go-price-resolver/internal/pricing"
	"github.com/safar/go-price-resolver/internal/store"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "price-resolver"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "price-resolver",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
		WarnStack:   cfg.Log.WarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logg.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer db.Close()

	logg.Info(ctx, "connected to database")

	var repo pricing.Repository
	switch cfg.Pricing.Engine {
	case config.EngineSnapshot:
		repo = store.NewSnapshotRepository(db, cfg.Database.MaxRetries)
	default:
		repo = store.NewPriceRepository(db, cfg.Database.MaxRetries)
	}

	checks := map[string]api.HealthCheck{"postgres": db.PingContext}

	params := pricing.ServiceParams{
		Repo:   repo,
		Engine: cfg.Pricing.Engine,
		Logger: logg,
	}

	if cfg.Cache.Enabled() {
		priceCache, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			logg.Error(ctx, "failed to connect to redis", err)
			os.Exit(1)
		}
		defer priceCache.Close()
		params.Cache = priceCache
		checks["redis"] = priceCache.Ping
		logg.Info(logg.WithField(ctx, "ttl", cfg.Cache.TTL.String()), "price cache enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "pricing"),
	)
	params.Metrics = metrics.NewResolverMetrics(registry)

	svc, err := pricing.NewService(params)
	if err != nil {
		logg.Error(ctx, "failed to create pricing service", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(api.RouterParams{
			Logger:         logg,
			Prices:         svc,
			PriceLists:     store.NewPriceListRepository(db),
			Checks:         checks,
			Gatherer:       registry,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}()

	logg.Info(logg.WithFields(ctx, map[string]any{
		"port":   cfg.Server.Port,
		"engine": cfg.Pricing.Engine,
	}), "server starting")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(context.Background(), "server stopped")
}
