// Package store persists mirrored commits, trees, blobs and reference
// targets in SQLite.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options tunes how the database is opened.
type Options struct {
	// JournalMode is the SQLite journal mode, WAL unless set.
	JournalMode string
	// BusyTimeout bounds how long a statement waits on a locked database.
	BusyTimeout time.Duration
	Logger      *zap.Logger
}

var journalModes = map[string]bool{
	"DELETE":   true,
	"TRUNCATE": true,
	"PERSIST":  true,
	"MEMORY":   true,
	"WAL":      true,
	"OFF":      true,
}

// Store is a handle on the mirror database. It holds a single connection:
// SQLite has one writer, and a run keeps its transaction open throughout.
type Store struct {
	db  *sqlx.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the
// connection pragmas. It does not migrate; call Migrate.
func Open(path string, opts Options) (*Store, error) {
	mode := strings.ToUpper(strings.TrimSpace(opts.JournalMode))
	if mode == "" {
		mode = "WAL"
	}
	if !journalModes[mode] {
		return nil, fmt.Errorf("open store: unsupported journal mode %q", opts.JournalMode)
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open store: create db directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA journal_mode=%s", mode),
		fmt.Sprintf("PRAGMA busy_timeout=%d", busy.Milliseconds()),
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("open store: %s: %w", pragma, err)
		}
	}
	log.Debug("store opened", zap.String("path", path), zap.String("journal_mode", mode))
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Begin starts a read-write transaction and prepares the statements used
// on the ingestion hot path.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	t := &Tx{tx: tx}
	if err := t.prepare(ctx); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return t, nil
}

// Update runs fn in a transaction, committing if fn succeeds and rolling
// back otherwise.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = multierror.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}
