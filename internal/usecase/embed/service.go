// Package embed vectorizes the filtered papers in provider batches and
// writes the embedded artifact.
package embed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/metrics"
	"github.com/paperdex/paperdex/internal/repository/corpus"
)

const stage = "embed"

// Config holds the embed stage settings.
type Config struct {
	BatchSize int
}

// Result summarizes one embed run.
type Result struct {
	Embedded  int
	Batches   int
	Dimension int
	Tokens    int
}

// Service embeds filtered papers batch by batch. The embedder is the
// caching decorator when a cache is configured.
type Service struct {
	store    *corpus.Store
	embedder domain.BatchEmbedder
	cfg      Config
	log      *zap.Logger
}

// New creates an embed service.
func New(store *corpus.Store, embedder domain.BatchEmbedder, cfg Config, log *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Service{store: store, embedder: embedder, cfg: cfg, log: log}
}

// Run streams the filtered artifact, embedding abstracts in consecutive
// batches and writing the embedded artifact. The vector dimension is
// probed once at the start; any later deviation aborts the run.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if err := s.store.EnsureArtifact(s.store.FilteredPath(), "run `paperdex filter` first"); err != nil {
		return Result{}, err
	}

	w, err := s.store.NewPaperWriter(s.store.EmbeddedPath())
	if err != nil {
		return Result{}, err
	}

	var res Result
	var stageErr error
	pending := make([]domain.Paper, 0, s.cfg.BatchSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if res.Dimension == 0 {
			dim, err := s.probe(ctx, pending[0].EmbeddingText())
			if err != nil {
				return err
			}
			res.Dimension = dim
			s.log.Info("probed embedding dimension", zap.Int("dimension", dim))
		}
		if err := s.embedBatch(ctx, pending, w, &res); err != nil {
			return err
		}
		pending = pending[:0]
		return nil
	}

	scanErr := s.store.ScanPapers(s.store.FilteredPath(), func(p domain.Paper) bool {
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

	if stageErr == nil && scanErr == nil {
		stageErr = flush()
	}

	if scanErr != nil {
		w.Abort()
		return res, fmt.Errorf("embed: %w", scanErr)
	}
	if stageErr != nil {
		w.Abort()
		return res, fmt.Errorf("embed: %w", stageErr)
	}
	if err := w.Commit(); err != nil {
		return res, fmt.Errorf("embed: %w", err)
	}

	s.log.Info("embed stage complete",
		zap.Int("embedded", res.Embedded),
		zap.Int("batches", res.Batches),
		zap.Int("dimension", res.Dimension),
		zap.Int("tokens", res.Tokens))
	return res, nil
}

// probe determines the vector dimension with a dedicated single-text call.
func (s *Service) probe(ctx context.Context, text string) (int, error) {
	out, err := s.embedder.BatchEmbed(ctx, []string{text})
	if err != nil {
		return 0, fmt.Errorf("dimension probe: %w", err)
	}
	if len(out.Embeddings) != 1 || len(out.Embeddings[0]) == 0 {
		return 0, fmt.Errorf("%w: dimension probe returned no vector", domain.ErrService)
	}
	return len(out.Embeddings[0]), nil
}

func (s *Service) embedBatch(ctx context.Context, papers []domain.Paper, w *corpus.PaperWriter, res *Result) error {
	start := time.Now()
	texts := make([]string, len(papers))
	for i, p := range papers {
		texts[i] = p.EmbeddingText()
	}

	out, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(stage, "error").Inc()
		return fmt.Errorf("batch %d: %w", res.Batches+1, err)
	}
	if len(out.Embeddings) != len(texts) {
		metrics.BatchesTotal.WithLabelValues(stage, "error").Inc()
		return fmt.Errorf("batch %d: %w: provider returned %d vectors for %d texts",
			res.Batches+1, domain.ErrService, len(out.Embeddings), len(texts))
	}

	for i := range papers {
		if len(out.Embeddings[i]) != res.Dimension {
			metrics.BatchesTotal.WithLabelValues(stage, "error").Inc()
			return fmt.Errorf("batch %d: paper %s: %w",
				res.Batches+1, papers[i].ID, domain.NewDimensionMismatch(res.Dimension, len(out.Embeddings[i])))
		}
		papers[i].Vector = out.Embeddings[i]
		if err := w.Write(papers[i]); err != nil {
			return err
		}
		metrics.RecordsProcessedTotal.WithLabelValues(stage).Inc()
	}

	res.Embedded += len(papers)
	res.Batches++
	res.Tokens += out.TotalTokens
	metrics.BatchesTotal.WithLabelValues(stage, "ok").Inc()
	metrics.BatchDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	s.log.Debug("embedded batch",
		zap.Int("batch", res.Batches),
		zap.Int("size", len(papers)),
		zap.Int("tokens", out.TotalTokens))
	return nil
}
