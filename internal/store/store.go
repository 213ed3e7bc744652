package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store owns the SQLite database for one dictionary file.
//
// SQLite only supports one writer at a time; the connection pool is
// limited to a single connection so concurrent callers serialize at the
// pool instead of failing with SQLITE_BUSY.
type Store struct {
	db    *sql.DB
	flush func()
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens a fresh in-memory database (for testing).
func OpenInMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Queries() when a typed collection exists.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetFlushHook registers the no-argument hook signalled after every
// successful mutation (once per transaction when batched). The hook is
// owned by the external persistence scheduler; the store never waits on
// it. A nil hook disables signalling.
func (s *Store) SetFlushHook(hook func()) {
	s.flush = hook
}

func (s *Store) signalFlush() {
	if s.flush != nil {
		s.flush()
	}
}

// Queries returns the typed collections bound directly to the database.
// Each mutation signals the flush hook individually.
func (s *Store) Queries() *Queries {
	return &Queries{q: s.db, notify: s.signalFlush}
}

// InTransaction runs fn against collections bound to a single
// transaction. The transaction commits when fn returns nil and rolls
// back otherwise, so a failure partway through a batch leaves the store
// unchanged. The flush hook is signalled once, after commit.
func (s *Store) InTransaction(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.signalFlush()
	return nil
}

// Checkpoint forces the WAL into the main database file. Used as the
// production flusher behind the debounced scheduler.
func (s *Store) Checkpoint() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting collections
// run unchanged inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the typed collections over one querier (database or
// transaction). notify is nil inside a transaction; the commit path
// signals instead.
type Queries struct {
	q      querier
	notify func()
}

// SchemaVersion reports the schema version this build writes.
func SchemaVersion() int {
	return currentSchemaVersion
}

func (q *Queries) signal() {
	if q.notify != nil {
		q.notify()
	}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < currentSchemaVersion {
		stmt := fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	return nil
}
