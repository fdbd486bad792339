// Package database is the local system of record: sqlite via sqlx, with
// goose-managed schema migrations embedded in the binary. Uniqueness of
// natural keys is enforced here with unique indexes so concurrent upserts
// cannot create duplicate rows.
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("duplicate row")
)

// Config holds database options.
type Config struct {
	// Path is the sqlite database file. ":memory:" is valid for tests.
	Path string
}

// DB wraps the sqlx connection pool.
type DB struct {
	conn *sqlx.DB
}

// NewDB opens the database and applies pending migrations.
func NewDB(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path not set")
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_loc=UTC", cfg.Path)
	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// sqlite allows a single writer; serialize access through one connection
	// to avoid SQLITE_BUSY under concurrent request load.
	conn.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(conn.DB, "migrations"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Connection exposes the pool for repositories.
func (d *DB) Connection() *sqlx.DB {
	return d.conn
}

// Close closes the underlying pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// translateErr maps driver errors to package sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return err
}
