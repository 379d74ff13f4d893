// Package sqlstore implements the persistent tier on a SQL database.
//
// Content lives in a single table keyed by shard path:
//
//	CREATE TABLE blobs (path TEXT PRIMARY KEY, content BYTEA|BLOB)
//
// PostgreSQL (driver "postgres", github.com/lib/pq) and SQLite (driver
// "sqlite", modernc.org/sqlite) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"  // registers "postgres"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/meigma/shortblob/core"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds connection settings for Open.
type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type dialect struct {
	create string
	get    string
	put    string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		create: `CREATE TABLE IF NOT EXISTS blobs (path TEXT PRIMARY KEY, content BYTEA NOT NULL)`,
		get:    `SELECT content FROM blobs WHERE path = $1`,
		put:    `INSERT INTO blobs (path, content) VALUES ($1, $2) ON CONFLICT (path) DO UPDATE SET content = EXCLUDED.content`,
	},
	DriverSQLite: {
		create: `CREATE TABLE IF NOT EXISTS blobs (path TEXT PRIMARY KEY, content BLOB NOT NULL)`,
		get:    `SELECT content FROM blobs WHERE path = ?`,
		put:    `INSERT INTO blobs (path, content) VALUES (?, ?) ON CONFLICT (path) DO UPDATE SET content = excluded.content`,
	},
}

// Backend implements core.Backend on database/sql.
type Backend struct {
	db      *sql.DB
	dialect dialect
	owned   bool // close db on Close
}

var _ core.Backend = (*Backend)(nil)

// Open connects with cfg, verifies the connection and creates the table.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if _, ok := dialects[cfg.Driver]; !ok {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	b, err := New(ctx, db, cfg.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// New wraps an existing database handle and runs the migration. Close does
// not close a handle supplied this way.
func New(ctx context.Context, db *sql.DB, driver string) (*Backend, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	b := &Backend{db: db, dialect: d}
	if _, err := db.ExecContext(ctx, d.create); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return b, nil
}

// Read implements core.Backend.
func (b *Backend) Read(ctx context.Context, path core.ShardPath) ([]byte, error) {
	var content []byte
	err := b.db.QueryRowContext(ctx, b.dialect.get, path.Key()).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlstore: %s: %w", path.Key(), core.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlstore: select %s: %w", path.Key(), err)
	}
	if content == nil {
		content = []byte{}
	}
	return content, nil
}

// Write implements core.Backend as an upsert.
func (b *Backend) Write(ctx context.Context, path core.ShardPath, content []byte) error {
	if content == nil {
		content = []byte{}
	}
	if _, err := b.db.ExecContext(ctx, b.dialect.put, path.Key(), content); err != nil {
		return fmt.Errorf("sqlstore: upsert %s: %w", path.Key(), err)
	}
	return nil
}

// Close implements core.Backend.
func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}
