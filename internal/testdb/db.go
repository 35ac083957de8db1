package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/goalforge/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

const setupTimeout = 10 * time.Second

var migrateOnce sync.Map // url -> *sync.Once

// URL is the integration database, read from GOALFORGE_TEST_DB_URL and then
// DATABASE_URL. Empty means integration tests are skipped.
func URL() string {
	for _, key := range []string{"GOALFORGE_TEST_DB_URL", "DATABASE_URL"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Open connects to the integration database and applies migrations once per
// URL. It skips t when no database is configured.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	url := URL()
	if url == "" {
		t.Skip("GOALFORGE_TEST_DB_URL not set; skipping postgres test")
	}

	db, err := sql.Open("pgx", url)
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "ping test database")

	once, _ := migrateOnce.LoadOrStore(url, &sync.Once{})
	var migrateErr error
	once.(*sync.Once).Do(func() {
		migrator, err := postgres.NewMigrator(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			migrateErr = err
			return
		}
		migrateErr = migrator.Up(ctx)
	})
	require.NoError(t, migrateErr, "migrate test database")

	return db
}

// WithTx hands fn a transaction that is rolled back afterwards, so tests
// never leave rows behind.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("rollback test transaction: %v", err)
		}
	}()

	fn(t, tx)
}
