// Package sqlite persists the pool's keyed records: contributions by
// (account, index), referral nodes and earnings by account, fee tokens by
// token ID, the audit ledger and wiring settings.
//
// The pure-Go modernc.org/sqlite driver is used so the binary stays CGO-free.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "treasury.db"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store carries every record operation. DB and Tx embed it so reads and
// writes are available both inside and outside a transaction.
type store struct {
	q querier
}

// DB is the process-wide handle.
type DB struct {
	store
	db   *sql.DB
	path string
}

// Tx is a write transaction. Exactly one is open at a time.
type Tx struct {
	store
	tx *sql.Tx
}

// Open creates (if needed) and migrates the database in dir.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite has a single writer. One connection turns every transaction
	// into a critical section instead of a SQLITE_BUSY retry loop.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{store: store{q: sqlDB}, db: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the connection.
func (db *DB) Close() error { return db.db.Close() }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Ping checks the connection (used by the health endpoint).
func (db *DB) Ping(ctx context.Context) error { return db.db.PingContext(ctx) }

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Begin opens a write transaction. The caller must Commit or Rollback.
// While it is open, use only the Tx: the DB handle blocks until it ends.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{store: store{q: tx}, tx: tx}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.tx.Commit() }

// Rollback aborts the transaction. Safe to call after Commit.
func (tx *Tx) Rollback() error {
	err := tx.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
