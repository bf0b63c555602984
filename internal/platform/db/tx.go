package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxOptions tunes a transaction.
type TxOptions struct {
	// IsoLevel defaults to RepeatableRead.
	IsoLevel pgx.TxIsoLevel
	// LockTimeout bounds each row lock wait. Zero keeps the server default.
	LockTimeout time.Duration
}

// WithTx runs fn in a RepeatableRead transaction.
func WithTx(ctx context.Context, db Beginner, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, db, TxOptions{}, fn)
}

// WithTxOptions runs fn in a transaction configured by opts. The transaction
// is rolled back unless fn returns nil and the commit succeeds; rollback still
// runs when ctx is already cancelled.
func WithTxOptions(ctx context.Context, db Beginner, opts TxOptions, fn func(pgx.Tx) error) error {
	iso := opts.IsoLevel
	if iso == "" {
		iso = pgx.RepeatableRead
	}
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if opts.LockTimeout > 0 {
		// SET does not take bind parameters; the value is an integer.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", opts.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: set lock timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}
