// Package dbtest boots a throwaway Postgres for repository integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ehr/priorauth/internal/platform/db"
	"github.com/ehr/priorauth/migrations"
)

// NewPool returns a migrated pool. PRIORAUTH_TEST_PG_DSN reuses an existing
// database instead of starting a container.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("PRIORAUTH_TEST_PG_DSN")
	if dsn == "" {
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("priorauth"),
			postgres.WithUsername("priorauth"),
			postgres.WithPassword("priorauth"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("resolve connection string: %v", err)
		}
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: dsn, MaxConns: 8})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}
