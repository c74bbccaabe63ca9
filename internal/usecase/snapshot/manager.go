// Package snapshot manages the backup repository and snapshot lifecycle
// for the paper index.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
)

// Admin is the engine capability the manager consumes.
type Admin interface {
	GetRepository(ctx context.Context, name string) (domain.RepositoryConfig, error)
	CreateRepository(ctx context.Context, name string, cfg domain.RepositoryConfig) error
	CreateSnapshot(ctx context.Context, repo, name string, indices []string, wait bool) (domain.Snapshot, error)
	ListSnapshots(ctx context.Context, repo string) ([]domain.Snapshot, error)
	SnapshotStatus(ctx context.Context, repo, name string) (domain.Snapshot, error)
	DeleteSnapshot(ctx context.Context, repo, name string) error
	RestoreSnapshot(ctx context.Context, repo, name string, opts domain.RestoreOptions) error
}

// Config holds snapshot repository settings.
type Config struct {
	RepoName  string
	RepoPath  string
	IndexName string
}

// Manager drives repository and snapshot operations.
type Manager struct {
	engine Admin
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
}

// New creates a snapshot manager.
func New(engine Admin, cfg Config, log *zap.Logger) *Manager {
	return &Manager{engine: engine, cfg: cfg, log: log, now: time.Now}
}

// WithClock overrides the clock used for default snapshot names.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// desired is the repository registration this deployment expects.
func (m *Manager) desired() domain.RepositoryConfig {
	return domain.RepositoryConfig{Type: "fs", Location: m.cfg.RepoPath, Compress: true}
}

// RegisterRepository registers the fs snapshot repository. Registering a
// repository that already exists with identical settings succeeds;
// diverging settings fail with RepositoryConflictError rather than
// silently overwriting.
func (m *Manager) RegisterRepository(ctx context.Context) error {
	desired := m.desired()

	existing, err := m.engine.GetRepository(ctx, m.cfg.RepoName)
	switch {
	case err == nil:
		if existing.Equal(desired) {
			m.log.Debug("repository already registered", zap.String("repo", m.cfg.RepoName))
			return nil
		}
		return domain.NewRepositoryConflict(m.cfg.RepoName)
	case errors.Is(err, domain.ErrNotFound):
		// fall through to registration
	default:
		return fmt.Errorf("read repository: %w", err)
	}

	if err := m.engine.CreateRepository(ctx, m.cfg.RepoName, desired); err != nil {
		return fmt.Errorf("register repository: %w", err)
	}
	m.log.Info("registered snapshot repository",
		zap.String("repo", m.cfg.RepoName),
		zap.String("location", m.cfg.RepoPath))
	return nil
}

// DefaultName returns the timestamped name used when none is given.
func (m *Manager) DefaultName() string {
	return "snapshot_" + m.now().Format("20060102_150405")
}

// Create takes a snapshot. An empty name gets the timestamped default;
// empty indices snapshot everything. The repository is registered first
// when absent.
func (m *Manager) Create(ctx context.Context, name string, indices []string, wait bool) (domain.Snapshot, error) {
	if err := m.RegisterRepository(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	if name == "" {
		name = m.DefaultName()
	}

	snap, err := m.engine.CreateSnapshot(ctx, m.cfg.RepoName, name, indices, wait)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}
	m.log.Info("snapshot created",
		zap.String("snapshot", snap.Name),
		zap.String("state", string(snap.State)),
		zap.Bool("wait", wait))
	return snap, nil
}

// List returns all snapshots in the repository.
func (m *Manager) List(ctx context.Context) ([]domain.Snapshot, error) {
	snaps, err := m.engine.ListSnapshots(ctx, m.cfg.RepoName)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// Status reads the state of one snapshot.
func (m *Manager) Status(ctx context.Context, name string) (domain.Snapshot, error) {
	snap, err := m.engine.SnapshotStatus(ctx, m.cfg.RepoName, name)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot status: %w", err)
	}
	return snap, nil
}

// Delete removes a snapshot. An in-progress snapshot cannot be deleted;
// the engine's conflict surfaces as SnapshotInProgressError.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := m.engine.DeleteSnapshot(ctx, m.cfg.RepoName, name); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	m.log.Info("snapshot deleted", zap.String("snapshot", name))
	return nil
}

// Restore restores from a snapshot with the given options.
func (m *Manager) Restore(ctx context.Context, name string, opts domain.RestoreOptions) error {
	if err := m.engine.RestoreSnapshot(ctx, m.cfg.RepoName, name, opts); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	m.log.Info("snapshot restored",
		zap.String("snapshot", name),
		zap.Strings("indices", opts.Indices),
		zap.String("rename_replacement", opts.RenameReplacement))
	return nil
}

// DefaultRestoreOptions restores the configured index under a
// `_restored` suffix so the live index is not clobbered. The replacement
// uses the engine's $1 group syntax, not Go's ${1}.
func (m *Manager) DefaultRestoreOptions(wait bool) domain.RestoreOptions {
	return domain.RestoreOptions{
		Indices:           []string{m.cfg.IndexName},
		RenamePattern:     "(.+)",
		RenameReplacement: "$1_restored",
		Wait:              wait,
	}
}
