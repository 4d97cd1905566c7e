// Package store persists enriched-table snapshots so the serving layer can
// reuse a load instead of re-reading and re-joining unchanged sources.
package store

import (
	"context"
	"time"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/pipeline"
)

// Snapshot is one persisted load of the enriched table.
type Snapshot struct {
	ID        string              `json:"id"`
	SourceKey string              `json:"source_key"`
	Rows      []model.Enriched    `json:"rows"`
	Quality   model.QualityReport `json:"quality"`
	CreatedAt time.Time           `json:"created_at"`
}

// SnapshotMeta is a snapshot listing entry without the row payload.
type SnapshotMeta struct {
	ID        string    `json:"id"`
	SourceKey string    `json:"source_key"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines snapshot persistence. Both backends store rows and quality
// reports as JSON documents; snapshots are immutable once saved.
type Store interface {
	SaveSnapshot(ctx context.Context, table *pipeline.Table, sourceKey string) (*Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)

	// LatestSnapshot returns the newest snapshot for the source key, or
	// nil when none exists.
	LatestSnapshot(ctx context.Context, sourceKey string) (*Snapshot, error)

	ListSnapshots(ctx context.Context, limit int) ([]SnapshotMeta, error)

	Migrate(ctx context.Context) error
	Close() error
}
