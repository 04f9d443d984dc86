// Package store implements the embedded transactional relational store
// described in spec section 4.1: a single SQLite file holding channels,
// videos, subtitles, job/settings singletons, and an append-only log.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var embeddedSchema string

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// Store wraps a SQLite connection pool configured for the single-writer
// semantics the Queue Manager's conditional claim depends on (spec section
// 9: "preserve that property explicitly").
type Store struct {
	db             *sql.DB
	lockWaitBudget time.Duration
}

// Open creates the containing directory if necessary, opens the database
// file, applies the embedded schema, and configures pragmas that make
// SQLite behave like the single-writer embedded store the spec assumes.
func Open(ctx context.Context, path string, lockWaitBudget time.Duration) (*Store, error) {
	if lockWaitBudget <= 0 {
		lockWaitBudget = 20 * time.Second
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, lockWaitBudget.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite serializes writers at the connection-pool level; a single
	// open connection turns that pool-level serialization into the
	// process-wide single-writer guarantee the conditional claim in
	// ClaimNext relies on (spec section 9).
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	s := &Store{db: db, lockWaitBudget: lockWaitBudget}

	if err := s.applySchema(ctx, embeddedSchema); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) applySchema(ctx context.Context, schema string) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply embedded schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers (migrations CLI, tests)
// that need direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withImmediateTx runs fn inside a transaction opened with SQLite's
// BEGIN IMMEDIATE mode, which acquires the write lock up front instead of
// deferring it to the first write statement. This matches the serialization
// pattern documented by other_examples' beads storage Transaction type and
// is how this store preserves "exactly one concurrent caller can succeed"
// for the claim conditional update (spec section 4.3) without depending on
// database/sql's default deferred-transaction behavior. fn never sees a
// partially committed error: any error it returns rolls the transaction
// back and is propagated to the caller (spec section 9 ambiguity (i) —
// commit errors are never swallowed).
func (s *Store) withImmediateTx(ctx context.Context, fn func(conn *sql.Conn) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			panic(p)
		}
	}()

	if fnErr := fn(conn); fnErr != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", fnErr, rbErr)
		}
		return fnErr
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Migrations returns the names of the .sql files in dir, sorted by name,
// used by the "migrate status" CLI verb in internal/app.
func Migrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
