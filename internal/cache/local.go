package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalSnapshotStore implements SnapshotStore using local file storage.
// This is suitable for single-instance deployments.
type LocalSnapshotStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewLocalSnapshotStore creates a new local file-based snapshot store.
// The filePath specifies where the snapshot file will be stored.
func NewLocalSnapshotStore(filePath string) *LocalSnapshotStore {
	return &LocalSnapshotStore{filePath: filePath}
}

// Get retrieves the snapshot from the local file.
func (s *LocalSnapshotStore) Get(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.filePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No snapshot file yet, not an error
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}

	return &snap, nil
}

// Set stores the snapshot to the local file.
func (s *LocalSnapshotStore) Set(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filePath == "" {
		return nil
	}

	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile) // Clean up temp file
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	return nil
}

// Close is a no-op for the local store.
func (s *LocalSnapshotStore) Close() error {
	return nil
}
