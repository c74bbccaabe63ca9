// Package load bulk-writes the embedded papers into the search index
// with per-item accounting.
package load

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/domain/batch"
	"github.com/paperdex/paperdex/internal/metrics"
	"github.com/paperdex/paperdex/internal/repository/corpus"
	"github.com/paperdex/paperdex/internal/retry"
)

const stage = "load"

// Config holds the load stage settings.
type Config struct {
	IndexName   string
	BatchSize   int
	Workers     int
	MappingPath string // index mapping JSON, empty = built-in
	BulkRetries int    // extra attempts for connectivity failures, 0 = off
}

// Result summarizes one load run. Indexed+Errored equals the number of
// submitted documents.
type Result struct {
	Indexed int64
	Errored int64
	Batches int
}

// Service loads embedded papers into the index. Bulk writes are keyed by
// paper id, so re-running on the same corpus yields no duplicates.
type Service struct {
	store  *corpus.Store
	engine Indexer
	cfg    Config
	log    *zap.Logger
}

// New creates a load service.
func New(store *corpus.Store, engine Indexer, cfg Config, log *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{store: store, engine: engine, cfg: cfg, log: log}
}

// counters accumulate across batches; atomics because the worker pool
// path reports from multiple goroutines.
type counters struct {
	indexed atomic.Int64
	errored atomic.Int64
	batches atomic.Int64
}

// Run streams the embedded artifact and bulk-writes it batch by batch.
// Connectivity loss is fatal; a rejected request marks its batch failed
// and the run continues. The index is refreshed after the final batch.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if err := s.store.EnsureArtifact(s.store.EmbeddedPath(), "run `paperdex embed` first"); err != nil {
		return Result{}, err
	}

	var cnt counters
	var err error
	if s.cfg.Workers > 1 {
		err = s.runPooled(ctx, &cnt)
	} else {
		err = s.runSequential(ctx, &cnt)
	}

	res := Result{
		Indexed: cnt.indexed.Load(),
		Errored: cnt.errored.Load(),
		Batches: int(cnt.batches.Load()),
	}
	if err != nil {
		return res, fmt.Errorf("load: %w", err)
	}

	if err := s.engine.Refresh(ctx, s.cfg.IndexName); err != nil {
		return res, fmt.Errorf("load: refresh: %w", err)
	}

	s.log.Info("load stage complete",
		zap.Int64("indexed", res.Indexed),
		zap.Int64("errored", res.Errored),
		zap.Int("batches", res.Batches))
	return res, nil
}

func (s *Service) runSequential(ctx context.Context, cnt *counters) error {
	return s.scanBatches(ctx, func(batchNo int, docs []domain.Paper) error {
		return s.loadBatch(ctx, batchNo, docs, cnt)
	})
}

// runPooled dispatches independent batches to an ants pool. The first
// fatal error cancels the remaining batches.
func (s *Service) runPooled(ctx context.Context, cnt *counters) error {
	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var once sync.Once
	var fatal error

	scanErr := s.scanBatches(ctx, func(batchNo int, docs []domain.Paper) error {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := s.loadBatch(ctx, batchNo, docs, cnt); err != nil {
				once.Do(func() {
					fatal = err
					cancel()
				})
			}
		}); err != nil {
			wg.Done()
			return fmt.Errorf("submit batch %d: %w", batchNo, err)
		}
		return nil
	})

	wg.Wait()
	if fatal != nil {
		return fatal
	}
	return scanErr
}

// scanBatches streams the embedded artifact, ensures the index before the
// first batch, and hands off full batches to dispatch.
func (s *Service) scanBatches(ctx context.Context, dispatch func(batchNo int, docs []domain.Paper) error) error {
	ensured := false
	batchNo := 0
	pending := make([]domain.Paper, 0, s.cfg.BatchSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if !ensured {
			if err := s.ensureIndex(ctx, len(pending[0].Vector)); err != nil {
				return err
			}
			ensured = true
		}
		batchNo++
		docs := make([]domain.Paper, len(pending))
		copy(docs, pending)
		pending = pending[:0]
		return dispatch(batchNo, docs)
	}

	var stageErr error
	scanErr := s.store.ScanPapers(s.store.EmbeddedPath(), func(p domain.Paper) bool {
		if err := ctx.Err(); err != nil {
			stageErr = err
			return false
		}
		pending = append(pending, p)
		if len(pending) == s.cfg.BatchSize {
			if err := flush(); err != nil {
				stageErr = err
				return false
			}
		}
		return true
	})
	if scanErr != nil {
		return scanErr
	}
	if stageErr != nil {
		return stageErr
	}
	return flush()
}

// ensureIndex creates the target index when absent. An existing index is
// left in place.
func (s *Service) ensureIndex(ctx context.Context, dims int) error {
	exists, err := s.engine.IndexExists(ctx, s.cfg.IndexName)
	if err != nil {
		return err
	}
	if exists {
		s.log.Debug("index exists", zap.String("index", s.cfg.IndexName))
		return nil
	}

	mapping := defaultMapping(dims)
	if s.cfg.MappingPath != "" {
		mapping, err = os.ReadFile(s.cfg.MappingPath)
		if err != nil {
			return fmt.Errorf("%w: read mapping %s: %v", domain.ErrConfig, s.cfg.MappingPath, err)
		}
	}

	s.log.Info("creating index",
		zap.String("index", s.cfg.IndexName),
		zap.Int("dims", dims))
	return s.engine.CreateIndex(ctx, s.cfg.IndexName, mapping)
}

// loadBatch issues one bulk write and accounts its outcome. Returns an
// error only for fatal conditions (connectivity loss, cancellation).
func (s *Service) loadBatch(ctx context.Context, batchNo int, docs []domain.Paper, cnt *counters) error {
	start := time.Now()

	report, err := s.bulkWithRetry(ctx, docs)
	if err != nil {
		if errors.Is(err, domain.ErrConnectivity) || errors.Is(err, context.Canceled) {
			metrics.BatchesTotal.WithLabelValues(stage, "error").Inc()
			return fmt.Errorf("batch %d: %w", batchNo, err)
		}
		// Engine reachable but the request was refused: the whole batch
		// counts as failed and the run continues.
		cnt.errored.Add(int64(len(docs)))
		cnt.batches.Add(1)
		metrics.BatchesTotal.WithLabelValues(stage, "error").Inc()
		metrics.RecordsFailedTotal.WithLabelValues(stage, "rejected").Add(float64(len(docs)))
		s.log.Warn("bulk request rejected, batch marked failed",
			zap.Int("batch", batchNo),
			zap.Int("size", len(docs)),
			zap.Error(err))
		return nil
	}

	cnt.indexed.Add(int64(report.Succeeded))
	cnt.errored.Add(int64(report.Failed))
	cnt.batches.Add(1)

	metrics.DocumentsIndexedTotal.Add(float64(report.Succeeded))
	metrics.RecordsProcessedTotal.WithLabelValues(stage).Add(float64(report.Submitted()))
	metrics.BatchDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	if report.Failed > 0 {
		metrics.BatchesTotal.WithLabelValues(stage, "partial").Inc()
		metrics.RecordsFailedTotal.WithLabelValues(stage, "bulk_item").Add(float64(report.Failed))
		if first, ok := report.FirstError(); ok {
			s.log.Warn("batch finished with item failures",
				zap.Int("batch", batchNo),
				zap.Int("failed", report.Failed),
				zap.Int("succeeded", report.Succeeded),
				zap.String("first_failed_id", first.ID()),
				zap.Error(first.Err()))
		}
	} else {
		metrics.BatchesTotal.WithLabelValues(stage, "ok").Inc()
		s.log.Debug("batch indexed",
			zap.Int("batch", batchNo),
			zap.Int("size", report.Succeeded))
	}
	return nil
}

// bulkWithRetry retries connectivity failures with backoff when
// bulk_retries is configured. Service rejections never retry.
func (s *Service) bulkWithRetry(ctx context.Context, docs []domain.Paper) (batch.Report, error) {
	var report batch.Report
	var rejected error

	err := retry.WithBackoff(ctx, s.log, s.cfg.BulkRetries+1, 500*time.Millisecond, func() error {
		r, err := s.engine.BulkUpsert(ctx, s.cfg.IndexName, docs)
		if err != nil {
			if errors.Is(err, domain.ErrConnectivity) {
				return err
			}
			rejected = err
			return nil
		}
		report = r
		return nil
	})
	if err != nil {
		return report, err
	}
	if rejected != nil {
		return report, rejected
	}
	return report, nil
}
