package storage

import (
	"context"
	"time"
)

// Snapshot is a loaded reference table for one (environment, kind) pair
type Snapshot struct {
	Environment string            `json:"environment"`
	Kind        string            `json:"kind"`
	Entries     map[string]string `json:"entries"`
	LoadedAt    time.Time         `json:"loaded_at"`
}

// SnapshotStore persists reference tables outside the process
type SnapshotStore interface {
	// GetSnapshot returns nil, nil when no snapshot exists
	GetSnapshot(ctx context.Context, env, kind string) (*Snapshot, error)
	PutSnapshot(ctx context.Context, snap *Snapshot) error
	Ping(ctx context.Context) error
	Close() error
}
