package filter

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/repository/corpus"
)

func newTestService(t *testing.T, cfg Config, lines ...string) (*Service, *corpus.Store) {
	t.Helper()
	store := corpus.NewStore(t.TempDir())
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(store.RawPath(), []byte(content), 0o600); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	if cfg.CategoryPrefix == "" {
		cfg.CategoryPrefix = "cs."
	}
	return New(store, cfg, zap.NewNop()), store
}

func readFiltered(t *testing.T, store *corpus.Store) []domain.Paper {
	t.Helper()
	var papers []domain.Paper
	if err := store.ScanPapers(store.FilteredPath(), func(p domain.Paper) bool {
		papers = append(papers, p)
		return true
	}); err != nil {
		t.Fatalf("ScanPapers: %v", err)
	}
	return papers
}

func TestRun_KeepsOnlyMatchingTags(t *testing.T) {
	svc, store := newTestService(t, Config{},
		`{"id":"1","title":"A","abstract":"x","categories":"cs.AI math.CO","authors":"a"}`,
		`{"id":"2","title":"B","abstract":"y","categories":"math.CO","authors":"b"}`,
		`{"id":"3","title":"C","abstract":"z","categories":"cs.DB cs.IR","authors":"c"}`,
	)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 3 || res.Kept != 2 || res.Malformed != 0 {
		t.Fatalf("res = %+v, want 3 processed / 2 kept / 0 malformed", res)
	}

	papers := readFiltered(t, store)
	if len(papers) != 2 {
		t.Fatalf("artifact holds %d papers, want 2", len(papers))
	}
	// Non-matching tags are dropped from kept records.
	if len(papers[0].Categories) != 1 || papers[0].Categories[0] != "cs.AI" {
		t.Errorf("categories = %v, want [cs.AI]", papers[0].Categories)
	}
	if len(papers[1].Categories) != 2 {
		t.Errorf("categories = %v, want [cs.DB cs.IR]", papers[1].Categories)
	}
}

func TestRun_NormalizesText(t *testing.T) {
	svc, store := newTestService(t, Config{},
		`{"id":"1","title":"  A\ntitle  ","abstract":"line one\nline two","categories":"cs.AI"}`,
	)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	papers := readFiltered(t, store)
	if papers[0].Title != "A title" {
		t.Errorf("Title = %q, want %q", papers[0].Title, "A title")
	}
	if papers[0].Abstract != "line one line two" {
		t.Errorf("Abstract = %q, want %q", papers[0].Abstract, "line one line two")
	}
}

func TestRun_MalformedLinesAreCountedNotFatal(t *testing.T) {
	svc, store := newTestService(t, Config{},
		`{"id":"1","categories":"cs.AI"}`,
		`{broken`,
		`{"id":"2","categories":"cs.DB"}`,
	)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 3 || res.Kept != 2 || res.Malformed != 1 {
		t.Fatalf("res = %+v, want 3/2/1", res)
	}
	if got := readFiltered(t, store); len(got) != 2 {
		t.Errorf("artifact holds %d papers, want 2", len(got))
	}
}

func TestRun_MaxDocumentsShortCircuits(t *testing.T) {
	svc, store := newTestService(t, Config{MaxDocuments: 2},
		`{"id":"1","categories":"cs.AI"}`,
		`{"id":"2","categories":"math.CO"}`,
		`{"id":"3","categories":"cs.AI"}`,
		`{"id":"4","categories":"cs.AI"}`,
		`{"id":"5","categories":"cs.AI"}`,
	)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kept != 2 {
		t.Errorf("Kept = %d, want 2", res.Kept)
	}
	// The scan stops at the cap rather than reading the whole file.
	if res.Processed != 3 {
		t.Errorf("Processed = %d, want 3 (short-circuit)", res.Processed)
	}
	if got := readFiltered(t, store); len(got) != 2 {
		t.Errorf("artifact holds %d papers, want 2", len(got))
	}
}

func TestRun_MissingRawArtifact(t *testing.T) {
	store := corpus.NewStore(t.TempDir())
	svc := New(store, Config{CategoryPrefix: "cs."}, zap.NewNop())

	_, err := svc.Run(context.Background())
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("err = %v, want domain.ErrConfig", err)
	}
	var missing *domain.ArtifactMissingError
	if !errors.As(err, &missing) {
		t.Fatal("expected ArtifactMissingError")
	}
}

func TestRun_CanceledContext(t *testing.T) {
	svc, store := newTestService(t, Config{},
		`{"id":"1","categories":"cs.AI"}`,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// Aborted runs leave no committed artifact behind.
	if _, err := os.Stat(store.FilteredPath()); !os.IsNotExist(err) {
		t.Error("canceled run must not commit the artifact")
	}
}
