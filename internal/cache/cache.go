package cache

import (
	"context"
	"time"

	"oddsfeed/internal/core"
)

// Snapshot is the persisted warm-restart image: one tagged, versioned
// record per cached entity, grouped by cache name. Importing a snapshot
// rebuilds cache items without going through the DTO merge path.
type Snapshot struct {
	Version   int                           `json:"version"`
	ID        string                        `json:"id"`
	CreatedAt time.Time                     `json:"created_at"`
	Caches    map[string][]core.ExportEntry `json:"caches"`
}

// SnapshotVersion is the current snapshot envelope version.
const SnapshotVersion = 1

// SnapshotStore persists warm-restart snapshots. Implementations must
// be safe for concurrent use.
type SnapshotStore interface {
	// Get retrieves the last stored snapshot.
	// Returns nil, nil if no snapshot exists yet.
	Get(ctx context.Context) (*Snapshot, error)

	// Set stores a snapshot, replacing any previous one.
	Set(ctx context.Context, snap *Snapshot) error

	// Close releases any resources held by the store.
	Close() error
}
