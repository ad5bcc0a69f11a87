// Package sqlite owns the single durable store file.
//
// Writes go through one connection and run inside a transaction, so
// mutations are serialized. Reads use a separate read-only pool and do not
// wait for writers. A weighted semaphore acts as the maintenance gate:
// ordinary operations take one unit, Exclusive takes all of them. While
// Exclusive is waiting or running, new writes fail fast with ErrMaintenance
// and new reads queue behind it.
package sqlite

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
	"sync/atomic"
	"time"

	"github.com/pressly/goose/v3"
	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"

	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
)

const gateWeight int64 = 1 << 20

var (
	// ErrMaintenance is returned to writers while a snapshot or restore holds the store.
	ErrMaintenance = dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "maintenance in progress")
	// ErrClosed is returned when the handles are gone, either after Close or
	// because the file could not be reopened after maintenance.
	ErrClosed = dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "database is not open")
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	path       string
	migrations fs.FS
	logger     *slog.Logger
	onReject   func()

	gate        *semaphore.Weighted
	maintenance atomic.Bool

	mu     sync.RWMutex
	writer *sql.DB
	reader *sql.DB
}

type Option func(*Store)

// WithMigrations applies the goose migrations in fsys on open and after every
// Exclusive section.
func WithMigrations(fsys fs.FS) Option {
	return func(s *Store) {
		s.migrations = fsys
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRejectHook is called each time a write is refused during maintenance.
func WithRejectHook(fn func()) Option {
	return func(s *Store) {
		s.onReject = fn
	}
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.New(slog.DiscardHandler),
		gate:   semaphore.NewWeighted(gateWeight),
	}
	for _, opt := range opts {
		opt(s)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func dsn(path string, readOnly bool) string {
	d := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if readOnly {
		return d + "&_pragma=query_only(1)"
	}
	return d + "&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func (s *Store) open(ctx context.Context) error {
	writer, err := sql.Open("sqlite", dsn(s.path, false))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if s.migrations != nil {
		provider, err := goose.NewProvider(goose.DialectSQLite3, writer, s.migrations)
		if err != nil {
			_ = writer.Close()
			return fmt.Errorf("load migrations: %w", err)
		}
		if _, err := provider.Up(ctx); err != nil {
			_ = writer.Close()
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	reader, err := sql.Open("sqlite", dsn(s.path, true))
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("open read pool: %w", err)
	}
	reader.SetMaxOpenConns(4)

	s.mu.Lock()
	s.writer, s.reader = writer, reader
	s.mu.Unlock()
	return nil
}

func (s *Store) closeHandles() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.writer != nil {
		// Fold the WAL back into the main file so the file alone is a complete copy.
		if _, err := s.writer.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			errs = append(errs, fmt.Errorf("checkpoint wal: %w", err))
		}
		errs = append(errs, s.writer.Close())
	}
	if s.reader != nil {
		errs = append(errs, s.reader.Close())
	}
	s.writer, s.reader = nil, nil
	return errors.Join(errs...)
}

// Write runs fn inside a transaction on the single writer connection. It
// fails immediately with ErrMaintenance while Exclusive is pending or running.
func (s *Store) Write(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if !s.gate.TryAcquire(1) {
		if s.onReject != nil {
			s.onReject()
		}
		return ErrMaintenance
	}
	defer s.gate.Release(1)

	s.mu.RLock()
	db := s.writer
	s.mu.RUnlock()
	if db == nil {
		return ErrClosed
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Read runs fn against the read pool, waiting behind any maintenance section.
func (s *Store) Read(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "maintenance in progress")
	}
	defer s.gate.Release(1)

	s.mu.RLock()
	db := s.reader
	s.mu.RUnlock()
	if db == nil {
		return ErrClosed
	}
	return fn(ctx, db)
}

// Exclusive drains in-flight operations, closes every handle, and runs fn
// with the database path while nothing else can touch the file. The store is
// reopened afterwards even when fn fails or ctx expires. If the file cannot
// be reopened, Read and Write return ErrClosed until a later Exclusive
// section leaves a usable file behind.
func (s *Store) Exclusive(ctx context.Context, fn func(ctx context.Context, path string) error) error {
	s.maintenance.Store(true)
	defer s.maintenance.Store(false)

	if err := s.gate.Acquire(ctx, gateWeight); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire maintenance lock")
	}
	defer s.gate.Release(gateWeight)

	if err := s.closeHandles(); err != nil {
		s.logger.ErrorContext(ctx, "closing store for maintenance", "error", err)
	}

	fnErr := fn(ctx, s.path)

	reopenErr := s.open(context.WithoutCancel(ctx))
	if reopenErr != nil {
		s.logger.ErrorContext(ctx, "reopening store after maintenance", "error", reopenErr)
		reopenErr = fmt.Errorf("reopen store: %w", reopenErr)
	}
	return errors.Join(fnErr, reopenErr)
}

// InMaintenance reports whether an Exclusive section is pending or running.
func (s *Store) InMaintenance() bool {
	return s.maintenance.Load()
}

// FormatTime renders t in the form stored in TEXT columns.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime reverses FormatTime. An empty string yields the zero time.
func ParseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Health pings the read pool.
func (s *Store) Health(ctx context.Context) error {
	return s.Read(ctx, func(ctx context.Context, q Querier) error {
		var one int
		return q.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
}

func (s *Store) Close() error {
	return s.closeHandles()
}
