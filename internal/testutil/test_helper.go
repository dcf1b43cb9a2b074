// Package testutil prepares a scratch Postgres database for integration tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/johndosdos/relay/sql/schema"
)

func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "../../")
	return root
}

// DbInit connects to TEST_DB_URL and rebuilds the schema from scratch. The
// test is skipped when no test database is configured. The schema is torn
// down again when the test ends.
func DbInit(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load(filepath.Join(ProjectRoot(), ".env")); err != nil {
		t.Logf("failed to load .env file: %+v", err)
	}

	testURL := os.Getenv("TEST_DB_URL")
	if testURL == "" {
		t.Skip("TEST_DB_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, testURL)
	if err != nil {
		t.Fatalf("could not connect to the postgresql database: %v", err)
	}

	migrate(t, ctx, dbPool, func(p *goose.Provider) error {
		if _, err := p.DownTo(ctx, 0); err != nil {
			return err
		}
		_, err := p.Up(ctx)
		return err
	})

	t.Cleanup(func() {
		DbCleanup(t, dbPool)
	})

	return dbPool
}

// DbCleanup rolls back every migration and closes the pool.
func DbCleanup(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	migrate(t, ctx, db, func(p *goose.Provider) error {
		_, err := p.DownTo(ctx, 0)
		return err
	})

	db.Close()
}

// migrate runs fn against a goose provider over db. The database/sql handle
// is closed before returning so the pool can be closed afterwards.
func migrate(t *testing.T, ctx context.Context, db *pgxpool.Pool, fn func(*goose.Provider) error) {
	t.Helper()

	dbForGoose := stdlib.OpenDBFromPool(db)
	defer func() {
		if err := dbForGoose.Close(); err != nil {
			t.Logf("db.Close() error = %+v", err)
		}
	}()

	provider, err := goose.NewProvider(goose.DialectPostgres, dbForGoose, schema.FS)
	if err != nil {
		t.Fatalf("goose.NewProvider() error = %+v", err)
	}

	if err := fn(provider); err != nil {
		t.Fatalf("goose migration error = %+v", err)
	}
}
