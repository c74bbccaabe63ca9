package corpus

import (
	"errors"
	"os"
	"testing"

	"github.com/paperdex/paperdex/internal/domain"
)

func writeRaw(t *testing.T, dir string, lines ...string) *Store {
	t.Helper()
	s := NewStore(dir)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(s.RawPath(), []byte(content), 0o600); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	return s
}

func TestScanRaw_DecodesAndSkipsMalformed(t *testing.T) {
	s := writeRaw(t, t.TempDir(),
		`{"id":"1","title":"A","abstract":"x","categories":"cs.AI math.CO","authors":"a","update_date":"2023-01-01"}`,
		`{not valid json`,
		`{"id":"2","title":"B","abstract":"y","categories":["cs.DB"],"authors":"b","update_date":"2023-01-02"}`,
	)

	var recs []RawRecord
	var malformed []error
	err := s.ScanRaw(
		func(rec RawRecord) bool { recs = append(recs, rec); return true },
		func(_ int, err error) { malformed = append(malformed, err) },
	)
	if err != nil {
		t.Fatalf("ScanRaw: %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("decoded %d records, want 2", len(recs))
	}
	if len(malformed) != 1 {
		t.Fatalf("counted %d malformed lines, want 1", len(malformed))
	}
	if !errors.Is(malformed[0], domain.ErrMalformedRecord) {
		t.Errorf("malformed err = %v, want domain.ErrMalformedRecord", malformed[0])
	}

	// String and array encodings of categories both decode.
	if len(recs[0].Categories) != 2 || recs[0].Categories[0] != "cs.AI" {
		t.Errorf("categories = %v, want [cs.AI math.CO]", recs[0].Categories)
	}
	if len(recs[1].Categories) != 1 || recs[1].Categories[0] != "cs.DB" {
		t.Errorf("categories = %v, want [cs.DB]", recs[1].Categories)
	}
}

func TestScanRaw_StopsWhenCallbackReturnsFalse(t *testing.T) {
	s := writeRaw(t, t.TempDir(),
		`{"id":"1"}`,
		`{"id":"2"}`,
		`{"id":"3"}`,
	)

	var seen int
	err := s.ScanRaw(
		func(RawRecord) bool { seen++; return seen < 2 },
		func(int, error) {},
	)
	if err != nil {
		t.Fatalf("ScanRaw: %v", err)
	}
	if seen != 2 {
		t.Errorf("consumed %d records, want 2 (short-circuit)", seen)
	}
}

func TestPaperWriter_RoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	papers := []domain.Paper{
		{ID: "1", Title: "A", Abstract: "x", Categories: []string{"cs.AI"}},
		{ID: "2", Title: "B", Abstract: "y", Categories: []string{"cs.DB"}, Vector: []float32{0.1, 0.2}},
	}

	w, err := s.NewPaperWriter(s.FilteredPath())
	if err != nil {
		t.Fatalf("NewPaperWriter: %v", err)
	}
	for _, p := range papers {
		if err := w.Write(p); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var got []domain.Paper
	if err := s.ScanPapers(s.FilteredPath(), func(p domain.Paper) bool {
		got = append(got, p)
		return true
	}); err != nil {
		t.Fatalf("ScanPapers: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("read %d papers, want 2", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("order not preserved: %v %v", got[0].ID, got[1].ID)
	}
	if len(got[1].Vector) != 2 {
		t.Errorf("vector not preserved: %v", got[1].Vector)
	}
}

func TestPaperWriter_CommitRenamesTmp(t *testing.T) {
	s := NewStore(t.TempDir())

	w, err := s.NewPaperWriter(s.FilteredPath())
	if err != nil {
		t.Fatalf("NewPaperWriter: %v", err)
	}

	// Before Commit only the .tmp sibling exists.
	if _, err := os.Stat(s.FilteredPath()); !os.IsNotExist(err) {
		t.Error("artifact must not exist before Commit")
	}
	if _, err := os.Stat(s.FilteredPath() + ".tmp"); err != nil {
		t.Errorf("tmp sibling should exist: %v", err)
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := os.Stat(s.FilteredPath()); err != nil {
		t.Errorf("artifact should exist after Commit: %v", err)
	}
	if _, err := os.Stat(s.FilteredPath() + ".tmp"); !os.IsNotExist(err) {
		t.Error("tmp sibling should be gone after Commit")
	}
}

func TestEnsureArtifact_Missing(t *testing.T) {
	s := NewStore(t.TempDir())

	err := s.EnsureArtifact(s.FilteredPath(), "run `paperdex filter` first")
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("err = %v, want domain.ErrConfig", err)
	}

	var missing *domain.ArtifactMissingError
	if !errors.As(err, &missing) {
		t.Fatal("expected ArtifactMissingError")
	}
	if missing.Hint != "run `paperdex filter` first" {
		t.Errorf("Hint = %q", missing.Hint)
	}
}

func TestWriteSample_Deterministic(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.WriteSample(40); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}

	var cs, nonCS int
	err := s.ScanRaw(func(rec RawRecord) bool {
		matched := false
		for _, c := range rec.Categories {
			if len(c) >= 3 && c[:3] == "cs." {
				matched = true
			}
		}
		if matched {
			cs++
		} else {
			nonCS++
		}
		return true
	}, func(int, error) { t.Error("sample snapshot must decode cleanly") })
	if err != nil {
		t.Fatalf("ScanRaw: %v", err)
	}

	if cs+nonCS != 40 {
		t.Fatalf("total = %d, want 40", cs+nonCS)
	}
	if nonCS != 10 {
		t.Errorf("nonCS = %d, want 10 (every 4th record)", nonCS)
	}

	// Same input, same bytes.
	first, _ := os.ReadFile(s.RawPath())
	if err := s.WriteSample(40); err != nil {
		t.Fatalf("WriteSample again: %v", err)
	}
	second, _ := os.ReadFile(s.RawPath())
	if string(first) != string(second) {
		t.Error("sample generation must be deterministic")
	}
}
