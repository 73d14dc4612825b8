// Package meta owns the embedded relational store holding every entity row.
// A single SQLite connection in WAL mode sits behind one mutex; every read
// and write in the process passes through it, which is the emulator's write
// serialization point.
package meta

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the SQLite handle and its mutex.
type Store struct {
	mu     sync.Mutex
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) <dataDir>/metadata.db and applies
// pending migrations.
func Open(dataDir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		filepath.Join(dataDir, "metadata.db"))
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	// One connection: SQLite serializes writers anyway and a single handle
	// keeps transaction scoping trivial.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping metadata db: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("metadata store ready", zap.String("data_dir", dataDir))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Get runs a single-row query under the store lock.
func (s *Store) Get(dest any, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Get(dest, query, args...)
}

// Select runs a multi-row query under the store lock.
func (s *Store) Select(dest any, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Select(dest, query, args...)
}

// Exec runs a statement under the store lock.
func (s *Store) Exec(query string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Tx runs fn inside a transaction under the store lock. A non-nil error
// rolls the transaction back.
func (s *Store) Tx(fn func(tx *sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}
