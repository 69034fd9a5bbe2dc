package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultCacheDir is ~/.oocana/cache, falling back to ./.oocana-cache if
// the home directory does not resolve.
func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oocana-cache"
	}
	return filepath.Join(home, ".oocana", "cache")
}

// pgxPoolFromDSN opens a pool directly from a postgres:// DSN, for the
// --session-db flag which takes a ready-made connection string rather
// than the discrete host/port/user fields postgres.Config expects.
func pgxPoolFromDSN(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}
