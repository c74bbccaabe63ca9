package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paperdex/paperdex"
	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/transport/ops"
	"github.com/paperdex/paperdex/internal/version"
)

// app holds the persistent flag values overriding the config file.
type app struct {
	dataDir   string
	index     string
	model     string
	engine    string
	opsAddr   string
	logLevel  string
	repo      string
	repoPath  string
	batchSize int
	maxDocs   int
	workers   int
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "paperdex",
		Short:         "Batched arXiv ingestion pipeline for Elasticsearch",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &cliError{code: exitUsage, err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory for corpus artifacts")
	pf.StringVar(&a.index, "index", "", "target index name")
	pf.StringVar(&a.model, "model", "", "embedding model")
	pf.StringVar(&a.engine, "engine", "", "engine driver (elastic, memory)")
	pf.StringVar(&a.opsAddr, "ops-addr", "", "diagnostics server address")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.repo, "repo", "", "snapshot repository name")
	pf.StringVar(&a.repoPath, "repo-path", "", "snapshot repository filesystem location")
	pf.IntVar(&a.batchSize, "batch-size", 0, "bulk load batch size")
	pf.IntVar(&a.maxDocs, "max-docs", 0, "cap on kept documents (0 = unlimited)")
	pf.IntVar(&a.workers, "workers", 0, "bulk load concurrency")

	root.AddCommand(
		a.fetchCmd(),
		a.filterCmd(),
		a.embedCmd(),
		a.loadCmd(),
		a.verifyCmd(),
		a.runCmd(),
		a.snapshotCmd(),
		versionCmd(),
	)
	return root
}

// open loads config, applies flag overrides, and wires the pipeline.
func (a *app) open(cmd *cobra.Command) (*paperdex.Pipeline, error) {
	cfg, err := config.Load(config.GetEnv())
	if err != nil {
		// No config file at all is fine; defaults plus flags carry a run.
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, &cliError{code: exitUsage, err: err}
		}
		cfg = config.Config{}
	}
	a.apply(cmd, &cfg)

	p, err := paperdex.New(paperdex.WithConfig(cfg))
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (a *app) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Root().PersistentFlags()
	if f.Changed("data-dir") {
		cfg.Pipeline.DataDir = a.dataDir
	}
	if f.Changed("index") {
		cfg.Pipeline.IndexName = a.index
	}
	if f.Changed("model") {
		cfg.Embedding.Model = a.model
	}
	if f.Changed("engine") {
		cfg.Engine.Driver = a.engine
	}
	if f.Changed("ops-addr") {
		cfg.Ops.Addr = a.opsAddr
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if f.Changed("repo") {
		cfg.Snapshot.RepoName = a.repo
	}
	if f.Changed("repo-path") {
		cfg.Snapshot.RepoPath = a.repoPath
	}
	if f.Changed("batch-size") {
		cfg.Pipeline.BatchSize = a.batchSize
	}
	if f.Changed("max-docs") {
		cfg.Pipeline.MaxDocuments = a.maxDocs
	}
	if f.Changed("workers") {
		cfg.Pipeline.Workers = a.workers
	}
}

func (a *app) fetchCmd() *cobra.Command {
	var sample int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the arXiv snapshot (or generate a synthetic sample)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			if sample > 0 {
				if err := p.Sample(sample); err != nil {
					return classify(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote synthetic snapshot of %d records\n", sample)
				return nil
			}

			path, err := p.Fetch(cmd.Context())
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot ready at %s\n", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&sample, "sample", 0, "generate a synthetic snapshot of N records instead of downloading")
	return cmd
}

func (a *app) filterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter",
		Short: "Filter the raw snapshot down to matching papers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Filter(cmd.Context())
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d records, kept %d, skipped %d malformed\n",
				res.Processed, res.Kept, res.Malformed)
			return nil
		},
	}
}

func (a *app) embedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Vectorize the filtered papers in provider batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Embed(cmd.Context())
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded %d papers in %d batches (dimension %d, %d tokens)\n",
				res.Embedded, res.Batches, res.Dimension, res.Tokens)
			return nil
		},
	}
}

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Bulk-write the embedded papers into the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Load(cmd.Context())
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents, %d failed, %d batches\n",
				res.Indexed, res.Errored, res.Batches)
			if res.Errored > 0 && res.Indexed == 0 {
				return &cliError{code: exitFatal, err: fmt.Errorf("all %d submitted documents failed", res.Errored)}
			}
			return nil
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	var expect int64
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report index statistics and check the document count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			report, err := p.Verify(cmd.Context(), expect)
			if report.Index != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "index %s: %d documents, %.1f MB, %d primary / %d replica shards\n",
					report.Index, report.Stats.Documents, report.Stats.StoreSizeMB(),
					report.Stats.PrimaryShards, report.Stats.ReplicaShards)
			}
			if err != nil {
				return classify(err)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&expect, "expect", -1, "expected document count (-1 = skip check)")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var skipFetch bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: fetch, filter, embed, load, verify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			if skipFetch {
				if err := p.EnsureRaw(); err != nil {
					return classify(err)
				}
			}

			if addr := p.Config().Ops.Addr; addr != "" {
				srv := ops.NewServer(ops.Config{Addr: addr, APIKeys: p.Config().Ops.APIKeys},
					p.Health(), p.Tracker(), p.Logger())
				go func() {
					if err := srv.Start(cmd.Context()); err != nil {
						p.Logger().Error("ops server failed", zap.Error(err))
					}
				}()
			}

			sum, err := p.Run(cmd.Context())
			if err != nil {
				return classify(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: processed %d, kept %d, embedded %d, indexed %d, errored %d in %s (%.1f docs/sec)\n",
				sum.RunID, sum.Processed, sum.Kept, sum.Embedded, sum.Indexed, sum.Errored,
				sum.Elapsed.Round(10*time.Millisecond), sum.DocsPerSec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipFetch, "skip-fetch", false, "fail instead of downloading when the raw snapshot is missing")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "paperdex %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
