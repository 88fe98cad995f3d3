// Package sqlite persists the bakery store to a single SQLite table of JSON
// buckets, written inside the commit of every unit of work.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store wraps the in-memory store and snapshots its state to SQLite before a
// commit becomes visible. A failed write aborts the commit.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path and hydrates the in-memory state.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = "bakery.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer connection; commits are already serialized by the memory store.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine, opts...), db: db, path: path}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetPersister(s)
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var (
		snapshot memory.Snapshot
		found    bool
	)
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		target, ok := snapshot.Bucket(bucket)
		if !ok || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

// Persist writes every bucket of snapshot in one SQLite transaction.
func (s *Store) Persist(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.BucketNames {
		target, _ := snapshot.Bucket(bucket)
		data, err := json.Marshal(target)
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
