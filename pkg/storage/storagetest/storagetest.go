// Package storagetest provides a migrated in-memory SQLite database for tests.
package storagetest

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/weavy/weavy/pkg/config"
	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/storage"
)

// NewDB opens a fresh in-memory database with the full schema applied.
// The database is closed when the test ends.
func NewDB(tb testing.TB) *sql.DB {
	tb.Helper()

	ctx := context.Background()
	db, dialect, err := storage.Open(ctx, config.DatabaseConfig{
		Driver: string(storage.DialectSQLite),
		DSN:    "file::memory:?_foreign_keys=on",
	})
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(ctx, db, dialect, observability.NewLogger(observability.ErrorLevel, io.Discard)); err != nil {
		tb.Fatalf("migrate test database: %v", err)
	}
	return db
}
