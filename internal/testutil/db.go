// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/archon-research/emissions-api/db/migrator"
)

// PostgresImage is the image used for integration databases.
const PostgresImage = "postgres:17-alpine"

// StartPostgres starts a Postgres container and returns its DSN and a
// cleanup function. No migrations are applied.
func StartPostgres(t *testing.T) (dsn string, cleanup func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start container: %v", err)
	}

	dsn, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup = func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return dsn, cleanup
}

// StartPostgresPool starts a Postgres container and returns a connected pool.
// No migrations are applied.
func StartPostgresPool(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	dsn, stop := StartPostgres(t)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		stop()
		t.Fatalf("create pool: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	return pool, func() {
		pool.Close()
		stop()
	}
}

// SetupTestDB starts Postgres, applies the repository migrations and returns
// a pool plus a cleanup function.
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	pool, cleanup := StartPostgresPool(t)

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "../../db/migrations")
	if err := migrator.New(pool, migrationsDir).ApplyAll(context.Background()); err != nil {
		cleanup()
		t.Fatalf("apply migrations: %v", err)
	}

	return pool, cleanup
}
