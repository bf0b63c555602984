package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockledger/cmd/stockledger/cli"
	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/masterdata/categories"
	"github.com/odyssey-erp/stockledger/internal/masterdata/products"
	"github.com/odyssey-erp/stockledger/internal/masterdata/warehouses"
	"github.com/odyssey-erp/stockledger/internal/observability"
	"github.com/odyssey-erp/stockledger/internal/platform/cache"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
	"github.com/odyssey-erp/stockledger/jobs"
)

const usage = `usage: stockledger [serve | migrate | jobs <trigger NAME | stats | scheduled>]`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "jobs":
		jobsCLI := cli.NewJobsCLI(cfg.AsynqRedis())
		err = jobsCLI.Run(ctx, args, os.Stdout)
		if closeErr := jobsCLI.Close(); closeErr != nil {
			logger.Warn("close jobs cli", slog.Any("error", closeErr))
		}
	default:
		err = errors.New(usage)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("stockledger-migrate"))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("stockledger-api"))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	var (
		readCache   inventory.ReadCache
		invalidator inventory.Invalidator
		inspector   jobs.QueueInspector
	)
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, serving read models uncached", slog.Any("error", err))
	} else {
		defer closeRedis(redisClient, logger)
		versioned := cache.NewVersioned(redisClient, "stockledger", cfg.QueryCacheTTL)
		readCache, invalidator = versioned, versioned

		queueInspector := asynq.NewInspector(cfg.AsynqRedis())
		defer queueInspector.Close()
		inspector = queueInspector
	}

	inventoryRepo := inventory.NewRepository(dbpool, inventory.WithLockTimeout(cfg.LockTimeout))
	inventoryService := inventory.NewService(
		inventoryRepo,
		inventory.NewSequenceNumberer(dbpool),
		shared.NewAuditLogger(dbpool),
		shared.NewIdempotencyStore(dbpool),
		inventory.ServiceConfig{
			MaxValidateAttempts: cfg.ValidateRetries,
			RetryBackoff:        cfg.RetryBackoff,
			RequireReady:        cfg.RequireReady,
			Cache:               invalidator,
			Metrics:             inventory.NewMetrics(metrics.Registerer()),
			Logger:              logger,
		},
	)
	queryService := inventory.NewQueryService(inventoryRepo, readCache, logger)
	productService := products.NewService(products.NewRepository(dbpool), products.WithInvalidator(invalidator, logger))
	warehouseService := warehouses.NewService(warehouses.NewRepository(dbpool), warehouses.WithInvalidator(invalidator, logger))

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		HealthCheck:       pingFunc(dbpool),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService, queryService),
		ProductsHandler:   products.NewHandler(logger, productService),
		CategoriesHandler: categories.NewHandler(logger, categories.NewService(categories.NewRepository(dbpool))),
		WarehousesHandler: warehouses.NewHandler(logger, warehouseService),
		JobHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func pingFunc(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
}
