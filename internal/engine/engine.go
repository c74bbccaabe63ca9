// Package engine defines the search engine facade implemented by the
// elastic and memory drivers.
package engine

import (
	"context"
	"time"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/domain/batch"
)

// Engine is the main facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Engine interface {
	Pinger
	IndexAdmin
	BulkIndexer
	StatsReader
	SnapshotAdmin
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks engine connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexAdmin provides index lifecycle operations. CreateIndex takes the
// raw settings+mappings JSON body.
type IndexAdmin interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, mapping []byte) error
	DeleteIndex(ctx context.Context, name string) error
	Refresh(ctx context.Context, name string) error
}

// BulkIndexer writes documents in bulk, keyed by paper id. The returned
// report carries per-item outcomes; the error is non-nil only when the
// whole request failed.
type BulkIndexer interface {
	BulkUpsert(ctx context.Context, index string, docs []domain.Paper) (batch.Report, error)
}

// StatsReader reads index statistics for verification.
type StatsReader interface {
	Stats(ctx context.Context, index string) (domain.IndexStats, error)
}

// SnapshotAdmin provides snapshot repository and snapshot lifecycle
// operations. GetRepository returns domain.ErrNotFound for an unknown
// repository; conflict policy lives in the snapshot usecase.
type SnapshotAdmin interface {
	GetRepository(ctx context.Context, name string) (domain.RepositoryConfig, error)
	CreateRepository(ctx context.Context, name string, cfg domain.RepositoryConfig) error
	CreateSnapshot(ctx context.Context, repo, name string, indices []string, wait bool) (domain.Snapshot, error)
	ListSnapshots(ctx context.Context, repo string) ([]domain.Snapshot, error)
	SnapshotStatus(ctx context.Context, repo, name string) (domain.Snapshot, error)
	DeleteSnapshot(ctx context.Context, repo, name string) error
	RestoreSnapshot(ctx context.Context, repo, name string, opts domain.RestoreOptions) error
}
