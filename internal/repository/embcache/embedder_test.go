package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/cache"
	"github.com/paperdex/paperdex/internal/domain"
)

func TestBatchEmbed_AllMisses(t *testing.T) {
	inner := &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}, tokens: 10}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setCalls int
	ms.setFn = func(_ context.Context, _ string, _ []byte) error {
		setCalls++
		return nil
	}

	result, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(result.Embeddings))
	}
	if result.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, expected 20", result.TotalTokens)
	}
	if inner.batchCalls != 1 {
		t.Errorf("provider called %d times, expected 1", inner.batchCalls)
	}
	if setCalls != 2 {
		t.Errorf("SET called %d times, expected 2", setCalls)
	}
}

func TestBatchEmbed_AllHits_SkipsProvider(t *testing.T) {
	inner := &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}, tokens: 10}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	result, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 0 {
		t.Errorf("provider called %d times, expected 0", inner.batchCalls)
	}
	if result.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, expected 0 on full cache hit", result.TotalTokens)
	}
	if result.Embeddings[0][0] != 0.4 || result.Embeddings[1][0] != 0.4 {
		t.Errorf("expected cached vectors, got %v", result.Embeddings)
	}
}

func TestBatchEmbed_PartialHits_ReembedsOnlyMisses(t *testing.T) {
	inner := &mockEmbedder{vector: []float32{9, 9, 9}, tokens: 10}
	ce, ms := newTestCachedEmbedder(t, inner)

	cachedKey := ce.cacheKey("cached text")
	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if key == cachedKey {
			return cached, nil
		}
		return nil, cache.ErrKeyNotFound
	}

	result, err := ce.BatchEmbed(context.Background(), []string{"miss one", "cached text", "miss two"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 {
		t.Fatalf("provider called %d times, expected 1", inner.batchCalls)
	}
	if len(inner.lastTexts) != 2 {
		t.Fatalf("provider received %d texts, expected 2 misses", len(inner.lastTexts))
	}
	if result.Embeddings[0][0] != 9 || result.Embeddings[2][0] != 9 {
		t.Errorf("misses should carry provider vectors, got %v", result.Embeddings)
	}
	if result.Embeddings[1][0] != 0.4 {
		t.Errorf("hit should carry the cached vector, got %v", result.Embeddings[1])
	}
}

func TestBatchEmbed_CorruptValue_FallsThroughToProvider(t *testing.T) {
	inner := &mockEmbedder{vector: []float32{1, 2, 3}, tokens: 5}
	ce, ms := newTestCachedEmbedder(t, inner)

	// 5 bytes: not divisible by 4, codec rejects it.
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3, 4, 5}, nil
	}

	result, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 {
		t.Errorf("provider called %d times, expected 1", inner.batchCalls)
	}
	if result.Embeddings[0][0] != 1 {
		t.Errorf("expected provider vector, got %v", result.Embeddings[0])
	}
}

func TestBatchEmbed_CacheErrors_AreNonFatal(t *testing.T) {
	inner := &mockEmbedder{vector: []float32{1, 2}, tokens: 5}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, &cache.Error{Op: cache.OpGet, Err: errors.New("io failure")}
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte) error {
		return &cache.Error{Op: cache.OpSet, Err: errors.New("io failure")}
	}

	result, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("cache failures must not be fatal, got: %v", err)
	}
	if len(result.Embeddings) != 1 {
		t.Fatalf("expected 1 embedding, got %d", len(result.Embeddings))
	}
}

func TestBatchEmbed_InnerError(t *testing.T) {
	innerErr := errors.New("provider down")
	inner := &mockEmbedder{err: innerErr}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}

// checkedEmbedder is a provider exposing a health check alongside BatchEmbed.
type checkedEmbedder struct {
	mockEmbedder
	healthErr error
}

func (c *checkedEmbedder) HealthCheck(context.Context) error { return c.healthErr }

func TestHealthCheck_DelegatesThroughCache(t *testing.T) {
	providerErr := errors.New("provider down")
	inner := &checkedEmbedder{healthErr: providerErr}
	ce := New(inner, &mockKVStore{}, "test-model", nil, zap.NewNop())

	// Wrapping must not hide the provider's check from consumers that
	// discover it by interface assertion.
	var embedder domain.BatchEmbedder = ce
	hc, ok := embedder.(domain.HealthChecker)
	if !ok {
		t.Fatal("cached embedder should expose the provider's HealthCheck")
	}
	if err := hc.HealthCheck(context.Background()); !errors.Is(err, providerErr) {
		t.Errorf("HealthCheck = %v, want the provider's error", err)
	}

	inner.healthErr = nil
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck = %v, want nil from a healthy provider", err)
	}
}

func TestHealthCheck_NoInnerChecker(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{vector: []float32{1}})

	if err := ce.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck without an inner checker = %v, want nil", err)
	}
}

func TestCacheKey_DependsOnModel(t *testing.T) {
	a := New(&mockEmbedder{}, &mockKVStore{}, "model-a", nil, nil)
	b := New(&mockEmbedder{}, &mockKVStore{}, "model-b", nil, nil)

	if a.cacheKey("same text") == b.cacheKey("same text") {
		t.Error("keys for different models must differ")
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.125, 0}
	got, err := bytesToVector(vectorToCacheBytes(vec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(vec) {
		t.Fatalf("length = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("got[%d] = %f, want %f", i, got[i], vec[i])
		}
	}
}
