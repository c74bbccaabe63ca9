// Package verify reads index statistics after a load and checks the
// document count against the loader's accounting.
package verify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
)

// StatsReader is the engine capability the verifier consumes.
type StatsReader interface {
	Stats(ctx context.Context, index string) (domain.IndexStats, error)
}

// Report is the verification outcome for one index.
type Report struct {
	Index        string
	Stats        domain.IndexStats
	ExpectedDocs int64 // -1 when no expectation was supplied
	CountMatches bool
}

// CountMismatchError reports a document count deviating from the loader's
// accounting. The index is reported, never auto-corrected.
type CountMismatchError struct {
	Index    string
	Expected int64
	Actual   int64
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("index %s holds %d documents, expected %d", e.Index, e.Actual, e.Expected)
}

// Service verifies index state after a load.
type Service struct {
	engine StatsReader
	index  string
	log    *zap.Logger
}

// New creates a verify service.
func New(engine StatsReader, index string, log *zap.Logger) *Service {
	return &Service{engine: engine, index: index, log: log}
}

// Run reads and reports index statistics. expected < 0 skips the count
// check; otherwise a deviation returns the report together with a
// CountMismatchError.
func (s *Service) Run(ctx context.Context, expected int64) (Report, error) {
	stats, err := s.engine.Stats(ctx, s.index)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}

	report := Report{
		Index:        s.index,
		Stats:        stats,
		ExpectedDocs: expected,
		CountMatches: expected < 0 || stats.Documents == expected,
	}

	s.log.Info("index statistics",
		zap.String("index", s.index),
		zap.Int64("documents", stats.Documents),
		zap.Float64("store_size_mb", stats.StoreSizeMB()),
		zap.Int("primary_shards", stats.PrimaryShards),
		zap.Int("replica_shards", stats.ReplicaShards))

	if !report.CountMatches {
		s.log.Warn("document count deviates from loader accounting",
			zap.Int64("expected", expected),
			zap.Int64("actual", stats.Documents))
		return report, &CountMismatchError{Index: s.index, Expected: expected, Actual: stats.Documents}
	}
	return report, nil
}
