// Package paperdex wires configuration, the search engine, the embedding
// provider, and the pipeline stages into one entry point.
package paperdex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/cache"
	cachebadger "github.com/paperdex/paperdex/internal/cache/badger"
	cacheredis "github.com/paperdex/paperdex/internal/cache/redis"
	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/engine"
	"github.com/paperdex/paperdex/internal/engine/elastic"
	"github.com/paperdex/paperdex/internal/engine/memory"
	"github.com/paperdex/paperdex/internal/logger"
	"github.com/paperdex/paperdex/internal/metrics"
	"github.com/paperdex/paperdex/internal/repository/corpus"
	"github.com/paperdex/paperdex/internal/repository/embcache"
	"github.com/paperdex/paperdex/internal/transport/kaggle"
	openaitr "github.com/paperdex/paperdex/internal/transport/openai"
	"github.com/paperdex/paperdex/internal/usecase/embed"
	"github.com/paperdex/paperdex/internal/usecase/filter"
	"github.com/paperdex/paperdex/internal/usecase/health"
	"github.com/paperdex/paperdex/internal/usecase/load"
	"github.com/paperdex/paperdex/internal/usecase/pipeline"
	"github.com/paperdex/paperdex/internal/usecase/snapshot"
	"github.com/paperdex/paperdex/internal/usecase/verify"
)

// settings collects what the options override before wiring.
type settings struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   engine.Engine
	embedder domain.BatchEmbedder
}

// Option configures New.
type Option func(*settings)

// WithConfig supplies a configuration instead of loading one from disk.
func WithConfig(cfg config.Config) Option {
	return func(s *settings) { s.cfg = &cfg }
}

// WithLogger supplies a logger. The caller keeps ownership of its sync.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithEngine injects a search engine, bypassing the config-driven driver.
func WithEngine(e engine.Engine) Option {
	return func(s *settings) { s.engine = e }
}

// WithEmbedder injects an embedding provider, bypassing the config-driven
// provider and cache decorator.
func WithEmbedder(e domain.BatchEmbedder) Option {
	return func(s *settings) { s.embedder = e }
}

// Pipeline is the wired paperdex instance.
type Pipeline struct {
	cfg        config.Config
	log        *zap.Logger
	ownsLogger bool

	engine     engine.Engine
	ownsEngine bool
	embedder   domain.BatchEmbedder
	cacheStore cache.Store

	store   *corpus.Store
	tracker *pipeline.Tracker

	filterSvc *filter.Service
	embedSvc  *embed.Service
	loadSvc   *load.Service
	verifySvc *verify.Service
	snapMgr   *snapshot.Manager
	healthSvc *health.Service
	fetcher   *kaggle.Downloader
	driver    *pipeline.Driver
}

// New wires a pipeline from configuration and options.
func New(opts ...Option) (*Pipeline, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	metrics.RegisterPipelineMetrics()
	metrics.RegisterEmbeddingMetrics()

	env := config.GetEnv()
	cfg, err := resolveConfig(s, env)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg}
	if err := p.initLogger(s, env); err != nil {
		return nil, err
	}
	if err := p.initEngine(s); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.initEmbedder(s); err != nil {
		p.Close()
		return nil, err
	}
	p.initServices()
	return p, nil
}

func resolveConfig(s settings, env string) (config.Config, error) {
	if s.cfg != nil {
		cfg := *s.cfg
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return config.Load(env)
}

func (p *Pipeline) initLogger(s settings, env string) error {
	if s.logger != nil {
		p.log = s.logger
		return nil
	}
	l, err := logger.New(env, p.cfg.Logging.Level)
	if err != nil {
		return err
	}
	p.log = l
	p.ownsLogger = true
	return nil
}

func (p *Pipeline) initEngine(s settings) error {
	if s.engine != nil {
		p.engine = s.engine
		return nil
	}

	switch p.cfg.Engine.Driver {
	case "memory":
		p.engine = memory.NewStore()
	default:
		store, err := elastic.NewStore(elastic.Config{
			Addresses: p.cfg.Engine.Addresses,
			Username:  p.cfg.Engine.Username,
			Password:  p.cfg.Engine.Password,
		})
		if err != nil {
			return fmt.Errorf("create engine: %w", err)
		}
		timeout := time.Duration(p.cfg.Engine.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), timeout); err != nil {
			return fmt.Errorf("engine not ready: %w", err)
		}
		p.engine = store
	}
	p.ownsEngine = true
	return nil
}

func (p *Pipeline) initEmbedder(s settings) error {
	if s.embedder != nil {
		p.embedder = s.embedder
		return nil
	}

	provider := openaitr.NewEmbedder(&openaitr.Config{
		APIKey:     p.cfg.Embedding.APIKey,
		BaseURL:    p.cfg.Embedding.BaseURL,
		Model:      p.cfg.Embedding.Model,
		Dimensions: p.cfg.Embedding.Dimensions,
		Provider:   p.cfg.Embedding.Provider,
		Logger:     p.log,
	})

	var embedder domain.BatchEmbedder = provider
	if p.cfg.Embedding.Instruction != "" {
		embedder = domain.NewInstructionEmbedder(provider, p.cfg.Embedding.Instruction)
	}

	store, err := p.openCache()
	if err != nil {
		return err
	}
	if store != nil {
		p.cacheStore = store
		embedder = embcache.New(embedder, store, p.cfg.Embedding.Model, metrics.EmbeddingCacheTotal, p.log)
	}

	p.embedder = embedder
	return nil
}

func (p *Pipeline) openCache() (cache.Store, error) {
	switch p.cfg.Embedding.Cache.Driver {
	case "none":
		return nil, nil
	case "redis":
		store, err := cacheredis.NewStore(cacheredis.Config{
			Addrs:    p.cfg.Embedding.Cache.Addresses,
			Username: p.cfg.Embedding.Cache.Username,
			Password: p.cfg.Embedding.Cache.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return store, nil
	default:
		store, err := cachebadger.NewStore(cachebadger.Config{Path: p.cfg.Embedding.Cache.Path}, p.log)
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
		return store, nil
	}
}

func (p *Pipeline) initServices() {
	p.store = corpus.NewStore(p.cfg.Pipeline.DataDir)
	p.tracker = pipeline.NewTracker()

	p.filterSvc = filter.New(p.store, filter.Config{
		CategoryPrefix: p.cfg.Pipeline.CategoryPrefix,
		MaxDocuments:   p.cfg.Pipeline.MaxDocuments,
	}, p.log)

	p.embedSvc = embed.New(p.store, p.embedder, embed.Config{
		BatchSize: p.cfg.Pipeline.EmbedBatchSize,
	}, p.log)

	p.loadSvc = load.New(p.store, p.engine, load.Config{
		IndexName:   p.cfg.Pipeline.IndexName,
		BatchSize:   p.cfg.Pipeline.BatchSize,
		Workers:     p.cfg.Pipeline.Workers,
		MappingPath: p.cfg.Pipeline.MappingPath,
		BulkRetries: p.cfg.Engine.BulkRetries,
	}, p.log)

	p.verifySvc = verify.New(p.engine, p.cfg.Pipeline.IndexName, p.log)

	p.snapMgr = snapshot.New(p.engine, snapshot.Config{
		RepoName:  p.cfg.Snapshot.RepoName,
		RepoPath:  p.cfg.Snapshot.RepoPath,
		IndexName: p.cfg.Pipeline.IndexName,
	}, p.log)

	var checker health.EmbeddingChecker
	if hc, ok := p.embedder.(domain.HealthChecker); ok {
		checker = hc
	}
	p.healthSvc = health.New(p.engine, checker)

	if user, key, err := kaggle.CredentialsFromEnv(); err == nil {
		p.fetcher = kaggle.New(kaggle.Config{Username: user, Key: key}, p.log)
	}

	var fetcher pipeline.Fetcher
	if p.fetcher != nil {
		fetcher = p.fetcher
	}
	p.driver = pipeline.New(p.store, fetcher, p.filterSvc, p.embedSvc, p.loadSvc, p.verifySvc, p.tracker, p.log)
}

// Fetch downloads the raw snapshot archive into the data directory.
func (p *Pipeline) Fetch(ctx context.Context) (string, error) {
	if p.fetcher == nil {
		return "", fmt.Errorf("%w: set KAGGLE_USERNAME and KAGGLE_KEY to download the dataset", domain.ErrConfig)
	}
	return p.fetcher.Fetch(ctx, p.cfg.Pipeline.DataDir)
}

// Sample writes a deterministic synthetic raw snapshot of n records.
func (p *Pipeline) Sample(n int) error {
	return p.store.WriteSample(n)
}

// EnsureRaw fails with remediation when the raw snapshot is absent.
func (p *Pipeline) EnsureRaw() error {
	return p.store.EnsureArtifact(p.store.RawPath(), "run `paperdex fetch` or `paperdex fetch --sample N` first")
}

// Filter runs the filter stage.
func (p *Pipeline) Filter(ctx context.Context) (filter.Result, error) {
	return p.filterSvc.Run(ctx)
}

// Embed runs the embedding stage.
func (p *Pipeline) Embed(ctx context.Context) (embed.Result, error) {
	return p.embedSvc.Run(ctx)
}

// Load runs the bulk load stage.
func (p *Pipeline) Load(ctx context.Context) (load.Result, error) {
	return p.loadSvc.Run(ctx)
}

// Verify reads index statistics; expected < 0 skips the count check.
func (p *Pipeline) Verify(ctx context.Context, expected int64) (verify.Report, error) {
	return p.verifySvc.Run(ctx, expected)
}

// Run executes the full pipeline.
func (p *Pipeline) Run(ctx context.Context) (pipeline.Summary, error) {
	return p.driver.Run(ctx)
}

// Snapshots returns the snapshot manager.
func (p *Pipeline) Snapshots() *snapshot.Manager { return p.snapMgr }

// Health returns the health check service.
func (p *Pipeline) Health() *health.Service { return p.healthSvc }

// Tracker returns the run status tracker for the diagnostics server.
func (p *Pipeline) Tracker() *pipeline.Tracker { return p.tracker }

// Config returns the resolved configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// Logger returns the wired logger.
func (p *Pipeline) Logger() *zap.Logger { return p.log }

// Close releases the engine, the cache, and the owned logger.
func (p *Pipeline) Close() {
	if p.engine != nil && p.ownsEngine {
		p.engine.Close()
	}
	if p.cacheStore != nil {
		if err := p.cacheStore.Close(); err != nil && p.log != nil {
			p.log.Warn("closing embedding cache", zap.Error(err))
		}
	}
	if p.ownsLogger && p.log != nil {
		_ = p.log.Sync()
	}
}
