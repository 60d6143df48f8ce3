package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bagline-erp/bagline/internal/app"
	"github.com/bagline-erp/bagline/internal/batch"
	"github.com/bagline-erp/bagline/internal/bol"
	"github.com/bagline-erp/bagline/internal/masterdata"
	"github.com/bagline-erp/bagline/internal/masterdata/carriers"
	"github.com/bagline-erp/bagline/internal/masterdata/customers"
	"github.com/bagline-erp/bagline/internal/masterdata/items"
	"github.com/bagline-erp/bagline/internal/masterdata/locations"
	"github.com/bagline-erp/bagline/internal/masterdata/sizes"
	"github.com/bagline-erp/bagline/internal/masterdata/suppliers"
	"github.com/bagline-erp/bagline/internal/masterdata/trucks"
	"github.com/bagline-erp/bagline/internal/observability"
	"github.com/bagline-erp/bagline/internal/platform/cache"
	"github.com/bagline-erp/bagline/internal/platform/db"
	"github.com/bagline-erp/bagline/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	itemsService := items.NewService(items.NewRepository(pool))
	sizesService := sizes.NewService(sizes.NewRepository(pool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	customersService := customers.NewService(customers.NewRepository(pool))
	locationsService := locations.NewService(locations.NewRepository(pool))
	carriersService := carriers.NewService(carriers.NewRepository(pool))
	trucksService := trucks.NewService(trucks.NewRepository(pool))
	registry := masterdata.NewRegistry(logger, pool, redisClient, cfg.SelectorCacheTTL)

	batchStore := batch.NewStore(pool)
	batchService := batch.NewService(logger, batchStore, metrics, jobClient)
	bolService := bol.NewService(logger, bol.NewStore(pool), batchStore, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Pool:   pool,

		ItemsHandler:     items.NewHandler(logger, itemsService),
		SizesHandler:     sizes.NewHandler(logger, sizesService),
		SuppliersHandler: suppliers.NewHandler(logger, suppliersService),
		CustomersHandler: customers.NewHandler(logger, customersService),
		LocationsHandler: locations.NewHandler(logger, locationsService),
		CarriersHandler:  carriers.NewHandler(logger, carriersService),
		TrucksHandler:    trucks.NewHandler(logger, trucksService),
		Registry:         registry,
		RegistryHandler:  masterdata.NewHandler(logger, registry),

		BatchHandler: batch.NewHandler(logger, batchService),
		BOLHandler:   bol.NewHandler(logger, bolService),

		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}
