package verify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
)

type statsFn func(ctx context.Context, index string) (domain.IndexStats, error)

func (f statsFn) Stats(ctx context.Context, index string) (domain.IndexStats, error) {
	return f(ctx, index)
}

func fixedStats(stats domain.IndexStats) statsFn {
	return func(context.Context, string) (domain.IndexStats, error) { return stats, nil }
}

func TestRun_ReportsStats(t *testing.T) {
	svc := New(fixedStats(domain.IndexStats{
		Documents:      120,
		StoreSizeBytes: 4 << 20,
		PrimaryShards:  1,
		ReplicaShards:  0,
	}), "papers", zap.NewNop())

	report, err := svc.Run(context.Background(), -1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Stats.Documents != 120 || !report.CountMatches {
		t.Errorf("report = %+v, want 120 docs and no mismatch", report)
	}
	if report.Stats.StoreSizeMB() != 4 {
		t.Errorf("StoreSizeMB = %v, want 4", report.Stats.StoreSizeMB())
	}
}

func TestRun_CountMatch(t *testing.T) {
	svc := New(fixedStats(domain.IndexStats{Documents: 42}), "papers", zap.NewNop())

	report, err := svc.Run(context.Background(), 42)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.CountMatches {
		t.Error("CountMatches should be true")
	}
}

func TestRun_CountMismatch(t *testing.T) {
	svc := New(fixedStats(domain.IndexStats{Documents: 41}), "papers", zap.NewNop())

	report, err := svc.Run(context.Background(), 42)
	var mismatch *CountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want CountMismatchError", err)
	}
	if mismatch.Expected != 42 || mismatch.Actual != 41 {
		t.Errorf("mismatch = %+v", mismatch)
	}
	// The report still carries the observed stats.
	if report.Stats.Documents != 41 || report.CountMatches {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_EngineError(t *testing.T) {
	svc := New(statsFn(func(context.Context, string) (domain.IndexStats, error) {
		return domain.IndexStats{}, fmt.Errorf("stats: %w", domain.ErrConnectivity)
	}), "papers", zap.NewNop())

	if _, err := svc.Run(context.Background(), -1); !errors.Is(err, domain.ErrConnectivity) {
		t.Fatalf("err = %v, want domain.ErrConnectivity", err)
	}
}
