package load

import (
	"context"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/domain/batch"
)

// Indexer is the engine capability the loader consumes.
type Indexer interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, mapping []byte) error
	BulkUpsert(ctx context.Context, index string, docs []domain.Paper) (batch.Report, error)
	Refresh(ctx context.Context, name string) error
}
