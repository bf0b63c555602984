package shared

import (
	"context"
	"log/slog"
)

// Invalidator drops cached read models built from catalog rows.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Invalidate bumps cache after a committed catalog write. A nil cache is a
// no-op and failures are only logged.
func Invalidate(ctx context.Context, cache Invalidator, logger *slog.Logger, entity string) {
	if cache == nil {
		return
	}
	if err := cache.Bump(ctx); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("cache bump failed", slog.String("entity", entity), slog.Any("error", err))
	}
}
