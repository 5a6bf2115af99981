package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLBackend keeps one row per key in a kv_store table. It serves both the
// local SQLite file and a shared PostgreSQL database.
type SQLBackend struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) a local database file.
func OpenSQLite(path string) (*SQLBackend, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return newSQLBackend(db)
}

// OpenPostgres connects to PostgreSQL with the given connection string.
func OpenPostgres(connectionString string) (*SQLBackend, error) {
	db, err := sqlx.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return newSQLBackend(db)
}

func newSQLBackend(db *sqlx.DB) (*SQLBackend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &SQLBackend{db: db}
	if err := b.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return b, nil
}

func (b *SQLBackend) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_store (
		storage_key TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		updated_at  BIGINT NOT NULL
	)`
	_, err := b.db.ExecContext(ctx, schema)
	return err
}

func (b *SQLBackend) Read(ctx context.Context, key string) ([]byte, error) {
	query := b.db.Rebind(`SELECT payload FROM kv_store WHERE storage_key = ?`)

	var payload string
	err := b.db.GetContext(ctx, &payload, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return []byte(payload), nil
}

func (b *SQLBackend) Write(ctx context.Context, key string, value []byte) error {
	query := b.db.Rebind(`
		INSERT INTO kv_store (storage_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (storage_key) DO UPDATE
		SET payload = excluded.payload,
		    updated_at = excluded.updated_at
	`)

	if _, err := b.db.ExecContext(ctx, query, key, string(value), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	query := b.db.Rebind(`DELETE FROM kv_store WHERE storage_key = ?`)
	if _, err := b.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) List(ctx context.Context, prefix string) ([]string, error) {
	query := b.db.Rebind(`
		SELECT storage_key FROM kv_store
		WHERE storage_key LIKE ? ESCAPE '\'
		ORDER BY storage_key
	`)

	var keys []string
	if err := b.db.SelectContext(ctx, &keys, query, escapeLike(prefix)+"%"); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
