package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavy/weavy/pkg/config"
	"github.com/weavy/weavy/pkg/observability"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestRunMigrations_SQLite(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite3", DSN: "file::memory:?_foreign_keys=on"})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, dialect)

	require.NoError(t, RunMigrations(ctx, db, dialect, quietLogger()))
	// A second run applies nothing and must not fail on existing tables.
	require.NoError(t, RunMigrations(ctx, db, dialect, quietLogger()))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(GetMigrations()), count)

	for _, table := range []string{"users", "roles", "role_members", "sessions", "api_tokens", "audit_events"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestRunMigrations_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite3", DSN: "file::memory:?_foreign_keys=on"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(ctx, db, dialect, quietLogger()))

	_, err = db.ExecContext(ctx, "INSERT INTO role_members (role_id, user_id, created_at) VALUES (1, 1, CURRENT_TIMESTAMP)")
	assert.Error(t, err, "membership must reference existing rows")
}

func TestOpen_SQLiteEnablesForeignKeys(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite3", DSN: "file::memory:"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(ctx, db, dialect, quietLogger()))

	var enabled int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)

	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, "INSERT INTO users (id, username, created_at, updated_at) VALUES (1, 'ada', $1, $1)", now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO roles (id, name, created_at, modified_at) VALUES (1, 'ops', $1, $1)", now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO role_members (role_id, user_id, created_at) VALUES (1, 1, $1)", now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "DELETE FROM roles WHERE id = 1")
	require.NoError(t, err)
	var members int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM role_members").Scan(&members))
	assert.Zero(t, members, "deleting a role cascades to its memberships")
}

func TestOpen_SQLiteForeignKeysDisabledByDSN(t *testing.T) {
	_, _, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite3", DSN: "file::memory:?_foreign_keys=off"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "weavy.db?_foreign_keys=on", sqliteDSN("weavy.db"))
	assert.Equal(t, "file:weavy.db?cache=shared&_foreign_keys=on", sqliteDSN("file:weavy.db?cache=shared"))
	assert.Equal(t, "file::memory:?_fk=1", sqliteDSN("file::memory:?_fk=1"))
}

func TestRunMigrations_FailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), db, DialectPostgres, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigration_SQLByDialect(t *testing.T) {
	for _, m := range GetMigrations() {
		assert.NotEmpty(t, m.SQL(DialectPostgres), m.Description)
		assert.NotEmpty(t, m.SQL(DialectSQLite), m.Description)
		assert.NotEqual(t, m.SQL(DialectPostgres), m.SQL(DialectSQLite), m.Description)
	}
}

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenRedis_Errors(t *testing.T) {
	_, err := OpenRedis(context.Background(), "not-a-url")
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = OpenRedis(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
