package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteSnapshotStore implements SnapshotStore on a local SQLite file.
// Compared to the flat-file store it survives partial writes even
// without the rename trick and keeps the previous snapshot queryable.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// NewSQLiteSnapshotStore opens (and, if needed, creates) the snapshot
// database at path. WAL mode is enabled for concurrent readers.
func NewSQLiteSnapshotStore(path string) (*SQLiteSnapshotStore, error) {
	if path == "" {
		path = ".cache/oddsfeed.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS snapshots (
		slot TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		created_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}

	return &SQLiteSnapshotStore{db: db}, nil
}

// Get retrieves the latest snapshot.
func (s *SQLiteSnapshotStore) Get(ctx context.Context) (*Snapshot, error) {
	var payload []byte
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE slot = 'latest'`)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No snapshot yet, not an error
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}

// Set stores the snapshot, replacing the previous one.
func (s *SQLiteSnapshotStore) Set(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (slot, payload, created_at) VALUES ('latest', ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		payload, snap.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
