// Package filter streams the raw snapshot and keeps the records matching
// the configured category prefix.
package filter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/metrics"
	"github.com/paperdex/paperdex/internal/repository/corpus"
)

const stage = "filter"

// Config holds the filter stage settings.
type Config struct {
	CategoryPrefix string
	// MaxDocuments caps the number of kept records; 0 = unlimited. The
	// scan stops as soon as the cap is reached.
	MaxDocuments int
}

// Result summarizes one filter run.
type Result struct {
	Processed int // lines consumed, malformed included
	Kept      int
	Malformed int
}

// Service filters the raw snapshot into the filtered papers artifact.
type Service struct {
	store *corpus.Store
	cfg   Config
	log   *zap.Logger
}

// New creates a filter service.
func New(store *corpus.Store, cfg Config, log *zap.Logger) *Service {
	return &Service{store: store, cfg: cfg, log: log}
}

// Run streams the raw snapshot and writes the filtered artifact.
// Undecodable lines are skipped and counted; a kept record retains only
// the category tags matching the prefix, with title and abstract
// normalized to single-line text.
func (s *Service) Run(ctx context.Context) (Result, error) {
	if err := s.store.EnsureArtifact(s.store.RawPath(), "run `paperdex fetch` or `paperdex sample` first"); err != nil {
		return Result{}, err
	}

	w, err := s.store.NewPaperWriter(s.store.FilteredPath())
	if err != nil {
		return Result{}, err
	}

	var res Result
	var stageErr error

	scanErr := s.store.ScanRaw(func(rec corpus.RawRecord) bool {
		if err := ctx.Err(); err != nil {
			stageErr = err
			return false
		}

		res.Processed++
		metrics.RecordsProcessedTotal.WithLabelValues(stage).Inc()

		matched := domain.MatchingCategories(rec.Categories, s.cfg.CategoryPrefix)
		if len(matched) == 0 {
			return true
		}

		p := domain.Paper{
			ID:         rec.ID,
			Title:      domain.NormalizeText(rec.Title),
			Abstract:   domain.NormalizeText(rec.Abstract),
			Categories: matched,
			Authors:    rec.Authors,
			UpdateDate: rec.UpdateDate,
		}
		if err := w.Write(p); err != nil {
			stageErr = err
			return false
		}
		res.Kept++

		if s.cfg.MaxDocuments > 0 && res.Kept >= s.cfg.MaxDocuments {
			s.log.Info("document cap reached, stopping scan",
				zap.Int("max_documents", s.cfg.MaxDocuments))
			return false
		}
		return true
	}, func(line int, err error) {
		res.Processed++
		res.Malformed++
		metrics.RecordsFailedTotal.WithLabelValues(stage, "malformed").Inc()
		s.log.Warn("skipping malformed record", zap.Int("line", line), zap.Error(err))
	})

	if scanErr != nil {
		w.Abort()
		return res, fmt.Errorf("filter: %w", scanErr)
	}
	if stageErr != nil {
		w.Abort()
		return res, fmt.Errorf("filter: %w", stageErr)
	}
	if err := w.Commit(); err != nil {
		return res, fmt.Errorf("filter: %w", err)
	}

	s.log.Info("filter stage complete",
		zap.Int("processed", res.Processed),
		zap.Int("kept", res.Kept),
		zap.Int("malformed", res.Malformed))
	return res, nil
}
