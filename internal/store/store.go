// Package store is railyard's durable state store: a single embedded SQLite
// database (spec §4.1) holding sessions, queue entries, locks, agents, and
// checkpoints. Multi-statement writes go through RunInTransaction, which
// takes the write lock at the start of the transaction so concurrent
// writers serialize instead of deadlocking (teacher's RunInTransaction
// contract); single-statement writes run directly on UnderlyingDB. Readers
// get snapshot isolation from WAL mode.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/railyard/railyard/internal/railyarderr"
)

// Store wraps the database connection. The mu field is not locked by any
// method: read-then-write operations such as the processing-lock claim are
// serialized by the write lock RunInTransaction takes.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open creates the schema (if missing), runs pending migrations, and
// returns a ready Store backed by the file at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, Classify(err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Classify(err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; WAL still allows concurrent readers across processes
	s := &Store{db: db, path: path}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory provides an ephemeral store for tests. A single shared-cache
// connection is used so the schema (created on one connection) is visible
// to queries from others, since ":memory:" databases are otherwise
// connection-scoped.
func OpenInMemory(ctx context.Context) (*Store, error) {
	dsn := "file:railyard-test?mode=memory&cache=shared&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, Classify(err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: ":memory:"}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeSchemaMismatch, "creating schema", err)
	}
	if err := runMigrations(s.db); err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeSchemaMismatch, "running migrations", err)
	}
	return nil
}

// Path returns the database file path, or ":memory:" for a store from OpenInMemory.
func (s *Store) Path() string { return s.path }

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// UnderlyingDB exposes the raw *sql.DB for extensions, per teacher precedent
// (storage.Storage.UnderlyingDB) — direct access bypasses invariants enforced
// by this package's methods, so callers should prefer those methods.
func (s *Store) UnderlyingDB() *sql.DB { return s.db }

// RunInTransaction executes fn inside a transaction that takes the write
// lock before fn runs (the effect of BEGIN IMMEDIATE), committing on nil return and rolling back (re-raising panics) otherwise —
// identical contract to the teacher's storage.Storage.RunInTransaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return Classify(err)
	}
	// ncruces/go-sqlite3 doesn't expose BEGIN IMMEDIATE through database/sql
	// transaction options directly; acquire the write lock eagerly with a
	// no-op write so later statements in fn never get surprised by a
	// concurrent writer's SQLITE_BUSY mid-transaction.
	if _, execErr := tx.ExecContext(ctx, `UPDATE schema_migrations SET name = name WHERE 1 = 0`); execErr != nil {
		tx.Rollback()
		return Classify(execErr)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return Classify(err)
	}
	return nil
}

// Classify converts a raw database/sql or driver error into a structured
// railyarderr.Error: SQLITE_BUSY / "locked" conditions are LockContention
// (spec §4.1), a malformed or corrupt database file is a System
// DB_CORRUPTED error, and any other error is a System STORE_IO_ERROR.
// sql.ErrNoRows and errors that are already structured pass through
// unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var rerr *railyarderr.Error
	if errors.As(err, &rerr) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "locked") || strings.Contains(msg, "busy"):
		return railyarderr.Wrap(railyarderr.ClassLockContention, railyarderr.CodeDBLocked, "database is locked", err)
	case strings.Contains(msg, "malformed") || strings.Contains(msg, "corrupt"):
		return railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeDBCorrupted, "database file is corrupted", err).
			WithSuggestion("repair with --repair or --force")
	case errors.Is(err, sql.ErrNoRows):
		return err
	default:
		return railyarderr.Wrap(railyarderr.ClassSystem, "STORE_IO_ERROR", "state store I/O error", err)
	}
}
