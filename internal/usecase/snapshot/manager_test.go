package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/engine/memory"
)

func newTestManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	eng := memory.NewStore()
	m := New(eng, Config{
		RepoName:  "arxiv_backup",
		RepoPath:  "/backups",
		IndexName: "papers",
	}, zap.NewNop())
	return m, eng
}

func seedPapers(t *testing.T, eng *memory.Store, ids ...string) {
	t.Helper()
	docs := make([]domain.Paper, len(ids))
	for i, id := range ids {
		docs[i] = domain.Paper{ID: id}
	}
	if _, err := eng.BulkUpsert(context.Background(), "papers", docs); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRegisterRepository_Idempotent(t *testing.T) {
	m, eng := newTestManager(t)
	ctx := context.Background()

	if err := m.RegisterRepository(ctx); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := m.RegisterRepository(ctx); err != nil {
		t.Fatalf("repeated registration with identical settings: %v", err)
	}

	cfg, err := eng.GetRepository(ctx, "arxiv_backup")
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	want := domain.RepositoryConfig{Type: "fs", Location: "/backups", Compress: true}
	if !cfg.Equal(want) {
		t.Errorf("registered config = %+v, want %+v", cfg, want)
	}
}

func TestRegisterRepository_SettingsConflict(t *testing.T) {
	m, eng := newTestManager(t)
	ctx := context.Background()

	// Same name, different location: must not be overwritten.
	other := domain.RepositoryConfig{Type: "fs", Location: "/elsewhere", Compress: true}
	if err := eng.CreateRepository(ctx, "arxiv_backup", other); err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}

	err := m.RegisterRepository(ctx)
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("err = %v, want domain.ErrStateConflict", err)
	}
	var conflict *domain.RepositoryConflictError
	if !errors.As(err, &conflict) {
		t.Fatal("expected RepositoryConflictError")
	}

	got, _ := eng.GetRepository(ctx, "arxiv_backup")
	if !got.Equal(other) {
		t.Error("conflicting registration must leave existing settings untouched")
	}
}

func TestCreate_DefaultName(t *testing.T) {
	m, eng := newTestManager(t)
	seedPapers(t, eng, "a")
	m.WithClock(func() time.Time {
		return time.Date(2026, 8, 23, 14, 5, 9, 0, time.Local)
	})

	snap, err := m.Create(context.Background(), "", nil, true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if snap.Name != "snapshot_20260823_140509" {
		t.Errorf("Name = %q, want snapshot_20260823_140509", snap.Name)
	}
	if snap.State != domain.SnapshotSuccess {
		t.Errorf("State = %s, want SUCCESS", snap.State)
	}
}

func TestCreate_RegistersRepositoryFirst(t *testing.T) {
	m, eng := newTestManager(t)
	seedPapers(t, eng, "a")

	if _, err := m.Create(context.Background(), "snap1", nil, true); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := eng.GetRepository(context.Background(), "arxiv_backup"); err != nil {
		t.Errorf("repository should be registered by Create: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m, eng := newTestManager(t)
	ctx := context.Background()
	seedPapers(t, eng, "a", "b", "c")

	if _, err := m.Create(ctx, "snap1", []string{"papers"}, true); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := eng.DeleteIndex(ctx, "papers"); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if err := m.Restore(ctx, "snap1", m.DefaultRestoreOptions(true)); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	stats, err := eng.Stats(ctx, "papers_restored")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Documents != 3 {
		t.Errorf("restored Documents = %d, want 3", stats.Documents)
	}
}

func TestListAndStatus(t *testing.T) {
	m, eng := newTestManager(t)
	ctx := context.Background()
	seedPapers(t, eng, "a")

	if _, err := m.Create(ctx, "snap1", nil, true); err != nil {
		t.Fatalf("Create: %v", err)
	}

	snaps, err := m.List(ctx)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("List = %v, %v; want one snapshot", snaps, err)
	}

	snap, err := m.Status(ctx, "snap1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !snap.State.Terminal() {
		t.Errorf("State = %s, want terminal", snap.State)
	}

	if _, err := m.Status(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing snapshot err = %v, want domain.ErrNotFound", err)
	}
}

// inProgressAdmin simulates an engine refusing to delete a running snapshot.
type inProgressAdmin struct {
	*memory.Store
}

func (a inProgressAdmin) DeleteSnapshot(_ context.Context, repo, name string) error {
	return domain.NewSnapshotInProgress(repo, name)
}

func TestDelete_InProgressConflict(t *testing.T) {
	eng := memory.NewStore()
	m := New(inProgressAdmin{eng}, Config{RepoName: "arxiv_backup", RepoPath: "/backups"}, zap.NewNop())

	err := m.Delete(context.Background(), "snap1")
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("err = %v, want domain.ErrStateConflict", err)
	}
	var conflict *domain.SnapshotInProgressError
	if !errors.As(err, &conflict) {
		t.Fatal("expected SnapshotInProgressError")
	}
}

func TestDelete(t *testing.T) {
	m, eng := newTestManager(t)
	ctx := context.Background()
	seedPapers(t, eng, "a")

	if _, err := m.Create(ctx, "snap1", nil, true); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Delete(ctx, "snap1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	snaps, _ := m.List(ctx)
	if len(snaps) != 0 {
		t.Errorf("snapshots after delete = %d, want 0", len(snaps))
	}
}
