package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/erazemk/knjiznica/internal/catalog"
	"github.com/erazemk/knjiznica/internal/store"
)

func runJanitor(ctx context.Context, database *sql.DB, cat *catalog.Service) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, database, cat, time.Now())
		}
	}
}

// sweep drops token revocations that have expired by now along with stale
// cache entries.
func sweep(ctx context.Context, database *sql.DB, cat *catalog.Service, now time.Time) {
	n, err := store.PurgeRevokedTokens(ctx, database, now.UTC())
	if err != nil {
		slog.Error("purging revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged revoked tokens", "count", n)
	}

	if evicted := cat.SweepCache(); evicted > 0 {
		slog.Info("evicted cache entries", "count", evicted)
	}
}
