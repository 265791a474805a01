// Package storage opens the SQL database and Redis connections and owns the schema.
//
// Two SQL drivers are supported: PostgreSQL through lib/pq for production and
// SQLite through mattn/go-sqlite3 for single-node installs and tests. Queries
// across the repository use $N placeholders, which both drivers accept, and
// every placeholder is introduced in ascending order.
//
//	db, dialect, err := storage.Open(ctx, cfg.Database)
//	if err != nil {
//		return err
//	}
//	if err := storage.RunMigrations(ctx, db, dialect, logger); err != nil {
//		return err
//	}
//
// The storagetest subpackage returns a migrated in-memory SQLite database for tests.
package storage
