package badger

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/cache"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{InMemory: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SetGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "emb:abc", []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "emb:abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Errorf("Get = %v, want [1 2 3 4]", got)
	}
}

func TestStore_GetMissingKey(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "emb:nothing")
	if !errors.Is(err, cache.ErrKeyNotFound) {
		t.Errorf("err = %v, want cache.ErrKeyNotFound", err)
	}
}

func TestStore_Overwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("old")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", []byte("new")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Get = %q, want %q", got, "new")
	}
}

func TestNewStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{Path: dir + "/embcache"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
}

func TestNewStore_EmptyPath(t *testing.T) {
	_, err := NewStore(Config{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}
