// Command seed loads products, warehouses and opening stock from a YAML
// fixture through the application services.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/masterdata/categories"
	"github.com/odyssey-erp/stockledger/internal/masterdata/products"
	"github.com/odyssey-erp/stockledger/internal/masterdata/warehouses"
	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

func main() {
	var (
		file      = pflag.StringP("file", "f", "scripts/seed/fixtures/demo.yaml", "fixture file to load")
		dsn       = pflag.String("dsn", "", "PostgreSQL DSN (defaults to PG_DSN)")
		actor     = pflag.String("actor", "seed", "actor recorded on opening receipts")
		skipStock = pflag.Bool("skip-stock", false, "create catalog entries only")
	)
	pflag.Parse()

	logger := app.NewLogger(&app.Config{LogFormat: "text", LogLevel: "info"})
	if err := run(*file, *dsn, *actor, *skipStock, logger); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(file, dsn, actor string, skipStock bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	fixture, err := LoadFixture(fh)
	fh.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	if dsn == "" {
		dsn = os.Getenv("PG_DSN")
	}
	if dsn == "" {
		return fmt.Errorf("no DSN: pass --dsn or set PG_DSN")
	}
	pool, err := db.New(ctx, dsn, db.PoolOptions{MaxConns: 4, ApplicationName: "stockledger-seed"})
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	repo := inventory.NewRepository(pool)
	stock := inventory.NewService(repo, inventory.NewSequenceNumberer(pool),
		shared.NewAuditLogger(pool), shared.NewIdempotencyStore(pool),
		inventory.ServiceConfig{Logger: logger})

	seeder := &Seeder{
		Categories: categories.NewService(categories.NewRepository(pool)),
		Products:   products.NewService(products.NewRepository(pool)),
		Warehouses: warehouses.NewService(warehouses.NewRepository(pool)),
		Stock:      stock,
		Actor:      actor,
		Logger:     logger,
	}
	sum, err := seeder.Run(ctx, fixture, skipStock)
	if err != nil {
		return err
	}
	logger.Info("seed complete",
		slog.Int("categories", sum.Categories),
		slog.Int("warehouses", sum.Warehouses),
		slog.Int("products", sum.Products),
		slog.Int("receipts", sum.Receipts))
	return nil
}
