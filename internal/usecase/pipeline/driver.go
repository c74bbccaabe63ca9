// Package pipeline runs the ingestion stages in order and reports the
// run summary.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/repository/corpus"
	"github.com/paperdex/paperdex/internal/usecase/embed"
	"github.com/paperdex/paperdex/internal/usecase/filter"
	"github.com/paperdex/paperdex/internal/usecase/load"
	"github.com/paperdex/paperdex/internal/usecase/verify"
)

// Stage consumer contracts; the concrete services satisfy them and tests
// inject fakes.
type (
	// Fetcher downloads the raw snapshot into the data directory.
	Fetcher interface {
		Fetch(ctx context.Context, destDir string) (string, error)
	}
	// FilterStage produces the filtered artifact.
	FilterStage interface {
		Run(ctx context.Context) (filter.Result, error)
	}
	// EmbedStage produces the embedded artifact.
	EmbedStage interface {
		Run(ctx context.Context) (embed.Result, error)
	}
	// LoadStage bulk-writes the embedded artifact.
	LoadStage interface {
		Run(ctx context.Context) (load.Result, error)
	}
	// VerifyStage checks the index against the loader's accounting.
	VerifyStage interface {
		Run(ctx context.Context, expected int64) (verify.Report, error)
	}
)

// StageError names the stage that stopped the run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + " stage: " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Summary is the end-of-run report.
type Summary struct {
	RunID      string
	Processed  int
	Kept       int
	Malformed  int
	Embedded   int
	Indexed    int64
	Errored    int64
	Elapsed    time.Duration
	DocsPerSec float64
	Verify     verify.Report
}

// Driver runs fetch, filter, embed, load, and verify in order. A stage
// failure is a hard stop.
type Driver struct {
	store   *corpus.Store
	fetcher Fetcher // nil when no credentials are configured
	filter  FilterStage
	embed   EmbedStage
	load    LoadStage
	verify  VerifyStage
	tracker *Tracker
	log     *zap.Logger
}

// New creates a pipeline driver.
func New(
	store *corpus.Store, fetcher Fetcher,
	fil FilterStage, emb EmbedStage, lod LoadStage, ver VerifyStage,
	tracker *Tracker, log *zap.Logger,
) *Driver {
	return &Driver{
		store: store, fetcher: fetcher,
		filter: fil, embed: emb, load: lod, verify: ver,
		tracker: tracker, log: log,
	}
}

// Run executes the full pipeline. Each run carries a fresh uuid in its
// logs. The summary is returned even when a late stage fails.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	log := d.log.With(zap.String("run_id", runID))
	d.tracker.Begin(runID)

	start := time.Now()
	sum := Summary{RunID: runID}

	log.Info("pipeline run starting")

	if err := d.runFetch(ctx, log); err != nil {
		return sum, &StageError{Stage: "fetch", Err: err}
	}

	d.tracker.SetStage("filter")
	filterRes, err := d.filter.Run(ctx)
	sum.Processed, sum.Kept, sum.Malformed = filterRes.Processed, filterRes.Kept, filterRes.Malformed
	d.tracker.Set("processed", int64(filterRes.Processed))
	d.tracker.Set("kept", int64(filterRes.Kept))
	if err != nil {
		return sum, &StageError{Stage: "filter", Err: err}
	}

	d.tracker.SetStage("embed")
	embedRes, err := d.embed.Run(ctx)
	sum.Embedded = embedRes.Embedded
	d.tracker.Set("embedded", int64(embedRes.Embedded))
	if err != nil {
		return sum, &StageError{Stage: "embed", Err: err}
	}

	d.tracker.SetStage("load")
	loadRes, err := d.load.Run(ctx)
	sum.Indexed, sum.Errored = loadRes.Indexed, loadRes.Errored
	d.tracker.Set("indexed", loadRes.Indexed)
	d.tracker.Set("errored", loadRes.Errored)
	if err != nil {
		return sum, &StageError{Stage: "load", Err: err}
	}
	// Item failures are tolerated up to the point where nothing landed.
	if loadRes.Errored > 0 && loadRes.Indexed == 0 {
		return sum, &StageError{Stage: "load", Err: fmt.Errorf(
			"all %d submitted documents failed", loadRes.Errored,
		)}
	}

	d.tracker.SetStage("verify")
	verifyRep, err := d.verify.Run(ctx, loadRes.Indexed)
	sum.Verify = verifyRep
	if err != nil {
		return sum, &StageError{Stage: "verify", Err: err}
	}

	sum.Elapsed = time.Since(start)
	if secs := sum.Elapsed.Seconds(); secs > 0 {
		sum.DocsPerSec = float64(sum.Indexed) / secs
	}
	d.tracker.SetStage("done")

	log.Info("pipeline run complete",
		zap.Int("processed", sum.Processed),
		zap.Int("kept", sum.Kept),
		zap.Int("malformed", sum.Malformed),
		zap.Int("embedded", sum.Embedded),
		zap.Int64("indexed", sum.Indexed),
		zap.Int64("errored", sum.Errored),
		zap.Duration("elapsed", sum.Elapsed),
		zap.Float64("docs_per_sec", sum.DocsPerSec))
	return sum, nil
}

// runFetch downloads the raw snapshot unless it is already present.
func (d *Driver) runFetch(ctx context.Context, log *zap.Logger) error {
	d.tracker.SetStage("fetch")

	if _, err := os.Stat(d.store.RawPath()); err == nil {
		log.Info("raw snapshot present, skipping download", zap.String("path", d.store.RawPath()))
		return nil
	}
	if d.fetcher == nil {
		return d.store.EnsureArtifact(d.store.RawPath(), "run `paperdex fetch` or `paperdex sample` first")
	}

	path, err := d.fetcher.Fetch(ctx, d.store.DataDir())
	if err != nil {
		return err
	}
	log.Info("raw snapshot fetched", zap.String("path", path))
	return nil
}
