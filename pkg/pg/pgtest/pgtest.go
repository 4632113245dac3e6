// Package pgtest connects tests to a real Postgres server.
//
// Tests using it are skipped unless PG_TEST_URL holds a connection string.
// The schema from db/migrations is applied once per process under an
// advisory lock, so packages running in parallel share one database safely.
package pgtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/mymechanic/pkg/logger"
	"github.com/dmitrymomot/mymechanic/pkg/pg"
)

// EnvVar names the variable holding the test database connection string.
const EnvVar = "PG_TEST_URL"

const migrationLockID = 727001

var (
	migrateOnce sync.Once
	migrateErr  error
)

// Pool returns a migrated pool closed at the end of t, or skips t when
// PG_TEST_URL is unset.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(EnvVar)
	if url == "" {
		t.Skip(EnvVar + " not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := pg.Config{
		ConnectionString:  url,
		MaxOpenConns:      4,
		MaxIdleConns:      0,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   time.Minute,
		MaxConnLifetime:   5 * time.Minute,
		RetryAttempts:     1,
		MigrationsPath:    migrationsPath(),
		MigrationsTable:   "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("pgtest: connect: %v", err)
	}
	t.Cleanup(pool.Close)

	migrateOnce.Do(func() { migrateErr = migrate(ctx, pool, cfg) })
	if migrateErr != nil {
		t.Fatalf("pgtest: migrate: %v", migrateErr)
	}
	return pool
}

func migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return err
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	return pg.Migrate(ctx, pool, cfg, logger.Discard())
}

// migrationsPath resolves db/migrations relative to this file so tests work
// from any package directory.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "db", "migrations")
}
