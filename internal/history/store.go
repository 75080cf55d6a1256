// Package history persists run outcomes and scaling decisions to SQLite,
// so past batches can be inspected after the process exits.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/swarm/internal/scheduler"
	_ "modernc.org/sqlite"
)

// Run is a persisted execution of one task batch.
type Run struct {
	ID         string
	Goal       string
	Discipline string
	Completed  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// ScalingEvent is a persisted scaling decision.
type ScalingEvent struct {
	RunID     string
	Action    string
	Workers   int
	Timestamp time.Time
}

// Store defines the persistence interface for runs and their results.
type Store interface {
	CreateRun(ctx context.Context, id, goal, discipline string) error
	FinishRun(ctx context.Context, id string, completed, failed int) error
	SaveResult(ctx context.Context, runID string, result scheduler.SubTaskResult) error
	SaveScalingEvent(ctx context.Context, ev ScalingEvent) error
	GetResults(ctx context.Context, runID string) ([]scheduler.SubTaskResult, error)
	ListRuns(ctx context.Context) ([]Run, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	return open(ctx, "file::memory:?mode=memory&cache=shared")
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
