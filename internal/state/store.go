// Package state manages the SQLite database that holds everything the front
// desk needs while the backend is unreachable: offline bookings, the room
// snapshot, cached confirmed bookings, the guest directory, staff sessions
// and small application settings.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods. Every method opens the database on first
// use, so callers never need to call [Store.Open] explicitly.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store is the SQLite-backed offline repository.
type Store struct {
	path string
	log  *slog.Logger
	now  func() time.Time

	mu      sync.RWMutex
	db      *sql.DB
	opening singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// DefaultDBPath returns the default path for the offline database:
// ~/.local/share/frontdesk/offline.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "frontdesk", "offline.db"), nil
}

// New returns a Store for the database at path without touching the disk.
func New(path string, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{path: path, log: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open is New followed by [Store.Open].
func Open(ctx context.Context, path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	s := New(path, logger, opts...)
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens (or creates) the database, applies pending migrations and
// verifies every collection exists. It is idempotent, and concurrent callers
// share a single in-flight open.
func (s *Store) Open(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

// Close releases the underlying database connection. The next operation
// reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Recreate deletes the database file and opens a fresh one at the current
// schema version. All data is lost.
func (s *Store) Recreate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	if err := removeDatabase(s.path); err != nil {
		return err
	}
	db, err := s.openLocked(ctx)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Reset deletes the database file and leaves the store closed.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	if err := removeDatabase(s.path); err != nil {
		return err
	}
	s.log.Info("offline database deleted", "path", s.path)
	return nil
}

// --- connection management ---------------------------------------------------

func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	v, err, _ := s.opening.Do("open", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.db != nil {
			return s.db, nil
		}
		// Callers share this open, so one caller's cancellation must not
		// fail it for the rest.
		db, err := s.openLocked(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.db = db
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

// openLocked opens the file and migrates it. A migration that trips over a
// missing table, or a collection still missing afterwards, gets the file
// rebuilt from scratch once. Callers hold s.mu.
func (s *Store) openLocked(ctx context.Context) (*sql.DB, error) {
	db, err := openDB(ctx, s.path)
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		s.log.Warn("offline database cannot be migrated, recreating it",
			"path", s.path, "missing", schemaErr.Collection)
		return s.rebuildLocked(ctx)
	}
	if err != nil {
		return nil, err
	}
	missing, err := missingCollections(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(missing) == 0 {
		return db, nil
	}

	s.log.Warn("offline database is missing collections, recreating it",
		"path", s.path, "missing", missing)
	_ = db.Close()
	return s.rebuildLocked(ctx)
}

// rebuildLocked deletes the file and opens a fresh one. Callers hold s.mu.
func (s *Store) rebuildLocked(ctx context.Context) (*sql.DB, error) {
	if err := removeDatabase(s.path); err != nil {
		return nil, err
	}
	db, err := openDB(ctx, s.path)
	if err != nil {
		return nil, err
	}
	missing, err := missingCollections(ctx, db)
	if err != nil || len(missing) > 0 {
		_ = db.Close()
		if err != nil {
			return nil, err
		}
		return nil, &SchemaError{Collection: missing[0]}
	}
	return db, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return db, nil
}

// removeDatabase deletes the database file and its WAL side files.
func removeDatabase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// --- transactions ------------------------------------------------------------

// update runs fn inside one transaction. If fn trips over a missing
// collection the database is recreated and fn runs once more.
func (s *Store) update(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	err := s.runOnce(ctx, op, fn)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		return err
	}

	s.log.Warn("collection missing, recreating offline database",
		"collection", schemaErr.Collection, "op", op)
	if rerr := s.Recreate(ctx); rerr != nil {
		return fmt.Errorf("recreating database after %v: %w", err, rerr)
	}
	return s.runOnce(ctx, op, fn)
}

func (s *Store) runOnce(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &TransactionError{Op: op, Err: err}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &TransactionError{Op: op, Err: err}
	}
	return nil
}
