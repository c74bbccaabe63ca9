// Package memory implements the engine facade in process memory. It backs
// tests and local dry runs where no Elasticsearch cluster is available.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/domain/batch"
	"github.com/paperdex/paperdex/internal/engine"
)

// Compile-time check: Store implements engine.Engine.
var _ engine.Engine = (*Store)(nil)

type index struct {
	mapping []byte
	docs    map[string]domain.Paper
}

type snapshot struct {
	info domain.Snapshot
	// docs holds a deep copy of each captured index at snapshot time.
	docs map[string]map[string]domain.Paper
}

// Store implements engine.Engine with in-process maps. Snapshots capture
// deep copies, so later writes do not leak into restored data.
type Store struct {
	mu        sync.RWMutex
	indexes   map[string]*index
	repos     map[string]domain.RepositoryConfig
	snapshots map[string]map[string]*snapshot
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		indexes:   make(map[string]*index),
		repos:     make(map[string]domain.RepositoryConfig),
		snapshots: make(map[string]map[string]*snapshot),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close releases nothing.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// IndexExists reports whether the index is present.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// CreateIndex creates an index. Creating an existing index fails the way
// the real engine does.
func (s *Store) CreateIndex(_ context.Context, name string, mapping []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; ok {
		return &engine.Error{Op: engine.OpCreateIndex, Err: fmt.Errorf(
			"%w: index %q already exists", domain.ErrService, name,
		)}
	}
	s.indexes[name] = &index{mapping: mapping, docs: make(map[string]domain.Paper)}
	return nil
}

// DeleteIndex removes an index.
func (s *Store) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return &engine.Error{Op: engine.OpDeleteIndex, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, name)}
	}
	delete(s.indexes, name)
	return nil
}

// Refresh is a no-op: writes are immediately visible.
func (s *Store) Refresh(_ context.Context, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.indexes[name]; !ok {
		return &engine.Error{Op: engine.OpRefresh, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, name)}
	}
	return nil
}

// BulkUpsert writes documents keyed by paper id, overwriting existing ids.
// A document with an empty id is reported as a per-item failure, matching
// the per-item accounting of the real bulk API.
func (s *Store) BulkUpsert(_ context.Context, indexName string, docs []domain.Paper) (batch.Report, error) {
	var report batch.Report
	if len(docs) == 0 {
		return report, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[indexName]
	if !ok {
		// The real engine auto-creates on bulk write.
		idx = &index{docs: make(map[string]domain.Paper)}
		s.indexes[indexName] = idx
	}

	for _, doc := range docs {
		if doc.ID == "" {
			report.Add(batch.NewError("", fmt.Errorf("%w: document without id", domain.ErrService)))
			continue
		}
		idx.docs[doc.ID] = doc
		report.Add(batch.NewOK(doc.ID))
	}
	return report, nil
}

// Stats reports document count and an approximate store size. The store
// always has one primary shard and no replicas.
func (s *Store) Stats(_ context.Context, name string) (domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[name]
	if !ok {
		return domain.IndexStats{}, &engine.Error{Op: engine.OpStats, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, name)}
	}

	var size int64
	for _, doc := range idx.docs {
		if b, err := json.Marshal(doc); err == nil {
			size += int64(len(b))
		}
	}

	return domain.IndexStats{
		Documents:      int64(len(idx.docs)),
		StoreSizeBytes: size,
		PrimaryShards:  1,
		ReplicaShards:  0,
	}, nil
}

// GetRepository reads a registered repository's settings.
func (s *Store) GetRepository(_ context.Context, name string) (domain.RepositoryConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.repos[name]
	if !ok {
		return domain.RepositoryConfig{}, &engine.Error{Op: engine.OpGetRepository, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, name)}
	}
	return cfg, nil
}

// CreateRepository registers a snapshot repository. Re-registering
// overwrites, matching the real engine; conflict policy lives upstream.
func (s *Store) CreateRepository(_ context.Context, name string, cfg domain.RepositoryConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[name] = cfg
	if _, ok := s.snapshots[name]; !ok {
		s.snapshots[name] = make(map[string]*snapshot)
	}
	return nil
}

// CreateSnapshot captures a deep copy of the named indices (empty = all).
// Snapshots complete synchronously, so the result is terminal regardless
// of wait.
func (s *Store) CreateSnapshot(
	_ context.Context, repo, name string, indices []string, _ bool,
) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repoSnaps, ok := s.snapshots[repo]
	if !ok {
		return domain.Snapshot{}, &engine.Error{Op: engine.OpCreateSnapshot, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, repo)}
	}
	if _, exists := repoSnaps[name]; exists {
		return domain.Snapshot{}, &engine.Error{Op: engine.OpCreateSnapshot, Err: fmt.Errorf(
			"%w: snapshot %q already exists", domain.ErrService, name,
		)}
	}

	if len(indices) == 0 {
		for idx := range s.indexes {
			indices = append(indices, idx)
		}
	}

	now := time.Now().UTC()
	snap := &snapshot{
		info: domain.Snapshot{
			Name:      name,
			State:     domain.SnapshotSuccess,
			Indices:   indices,
			StartTime: now,
			EndTime:   now,
		},
		docs: make(map[string]map[string]domain.Paper, len(indices)),
	}
	for _, idxName := range indices {
		idx, ok := s.indexes[idxName]
		if !ok {
			return domain.Snapshot{}, &engine.Error{Op: engine.OpCreateSnapshot, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, idxName)}
		}
		copied := make(map[string]domain.Paper, len(idx.docs))
		for id, doc := range idx.docs {
			copied[id] = doc
		}
		snap.docs[idxName] = copied
	}

	repoSnaps[name] = snap
	return snap.info, nil
}

// ListSnapshots returns all snapshots in a repository.
func (s *Store) ListSnapshots(_ context.Context, repo string) ([]domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repoSnaps, ok := s.snapshots[repo]
	if !ok {
		return nil, &engine.Error{Op: engine.OpListSnapshots, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, repo)}
	}

	out := make([]domain.Snapshot, 0, len(repoSnaps))
	for _, snap := range repoSnaps {
		out = append(out, snap.info)
	}
	return out, nil
}

// SnapshotStatus reads the current state of one snapshot.
func (s *Store) SnapshotStatus(_ context.Context, repo, name string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, err := s.lookupLocked(engine.OpSnapshotStatus, repo, name)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snap.info, nil
}

// DeleteSnapshot removes a snapshot. A non-terminal snapshot cannot be
// deleted.
func (s *Store) DeleteSnapshot(_ context.Context, repo, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.lookupLocked(engine.OpDeleteSnapshot, repo, name)
	if err != nil {
		return err
	}
	if !snap.info.State.Terminal() {
		return &engine.Error{Op: engine.OpDeleteSnapshot, Err: domain.NewSnapshotInProgress(repo, name)}
	}
	delete(s.snapshots[repo], name)
	return nil
}

// RestoreSnapshot copies captured indices back into the store, applying
// the rename pattern so a live index is not clobbered.
func (s *Store) RestoreSnapshot(_ context.Context, repo, name string, opts domain.RestoreOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.lookupLocked(engine.OpRestoreSnapshot, repo, name)
	if err != nil {
		return err
	}

	var rename *regexp.Regexp
	if opts.RenamePattern != "" {
		rename, err = regexp.Compile(opts.RenamePattern)
		if err != nil {
			return &engine.Error{Op: engine.OpRestoreSnapshot, Err: fmt.Errorf(
				"%w: invalid rename pattern %q: %v", domain.ErrService, opts.RenamePattern, err,
			)}
		}
	}

	want := make(map[string]bool, len(opts.Indices))
	for _, idx := range opts.Indices {
		want[idx] = true
	}

	for idxName, docs := range snap.docs {
		if len(want) > 0 && !want[idxName] {
			continue
		}
		target := idxName
		if rename != nil {
			target = rename.ReplaceAllString(idxName, goReplacement(opts.RenameReplacement))
		}
		if _, exists := s.indexes[target]; exists {
			return &engine.Error{Op: engine.OpRestoreSnapshot, Err: fmt.Errorf(
				"%w: cannot restore over open index %q", domain.ErrService, target,
			)}
		}
		copied := make(map[string]domain.Paper, len(docs))
		for id, doc := range docs {
			copied[id] = doc
		}
		s.indexes[target] = &index{docs: copied}
	}
	return nil
}

// The real engine's restore applies replacements with Java regex syntax,
// where group references are written $1. Go's regexp reads $1_restored as
// the group named "1_restored", so numeric references are braced before
// expansion. Already-braced ${1} passes through untouched.
var groupRef = regexp.MustCompile(`\$(\d+)`)

func goReplacement(replacement string) string {
	return groupRef.ReplaceAllStringFunc(replacement, func(ref string) string {
		return "${" + ref[1:] + "}"
	})
}

func (s *Store) lookupLocked(op, repo, name string) (*snapshot, error) {
	repoSnaps, ok := s.snapshots[repo]
	if !ok {
		return nil, &engine.Error{Op: op, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, repo)}
	}
	snap, ok := repoSnaps[name]
	if !ok {
		return nil, &engine.Error{Op: op, Err: fmt.Errorf("%w: %s/%s", domain.ErrNotFound, repo, name)}
	}
	return snap, nil
}
