// Package corpus reads and writes the pipeline's JSON Lines artifacts
// under the data directory.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paperdex/paperdex/internal/domain"
)

// Artifact file names under the data directory.
const (
	RawSnapshotFile = "arxiv-metadata-oai-snapshot.json"
	FilteredFile    = "cs_papers.json"
	EmbeddedFile    = "cs_papers_with_embeddings.json"
)

// Abstracts run long; the default bufio.Scanner limit is too small.
const maxLineBytes = 4 * 1024 * 1024

// CategoryList accepts both encodings of the raw categories field:
// a space-separated string (the arXiv snapshot) or a JSON array.
type CategoryList []string

// UnmarshalJSON implements json.Unmarshaler.
func (c *CategoryList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = strings.Fields(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("categories must be a string or an array: %w", err)
	}
	*c = list
	return nil
}

// RawRecord mirrors one line of the raw snapshot. Unknown fields are ignored.
type RawRecord struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Abstract   string       `json:"abstract"`
	Categories CategoryList `json:"categories"`
	Authors    string       `json:"authors"`
	UpdateDate string       `json:"update_date"`
}

// Store locates and streams corpus artifacts under a data directory.
type Store struct {
	dataDir string
}

// NewStore creates a corpus store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// DataDir returns the root data directory.
func (s *Store) DataDir() string { return s.dataDir }

// RawPath returns the raw snapshot artifact path.
func (s *Store) RawPath() string { return filepath.Join(s.dataDir, RawSnapshotFile) }

// FilteredPath returns the filtered papers artifact path.
func (s *Store) FilteredPath() string { return filepath.Join(s.dataDir, FilteredFile) }

// EmbeddedPath returns the embedded papers artifact path.
func (s *Store) EmbeddedPath() string { return filepath.Join(s.dataDir, EmbeddedFile) }

// EnsureArtifact verifies an upstream artifact exists. hint names the
// command that produces it, surfaced in the error for remediation.
func (s *Store) EnsureArtifact(path, hint string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return domain.NewArtifactMissing(path, hint)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

// ScanRaw streams the raw snapshot line by line. Decoded records go to cb;
// undecodable lines go to onMalformed and scanning continues. cb returning
// false stops consumption immediately.
func (s *Store) ScanRaw(cb func(rec RawRecord) bool, onMalformed func(line int, err error)) error {
	f, err := os.Open(s.RawPath())
	if err != nil {
		return fmt.Errorf("open %s: %w", s.RawPath(), err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		var rec RawRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			onMalformed(line, fmt.Errorf("%w: line %d: %v", domain.ErrMalformedRecord, line, err))
			continue
		}
		if !cb(rec) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", s.RawPath(), err)
	}
	return nil
}

// ScanPapers streams a papers artifact (filtered or embedded) line by line.
// Papers artifacts are pipeline-written, so a malformed line is an error,
// not a skip.
func (s *Store) ScanPapers(path string, cb func(p domain.Paper) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}

		var p domain.Paper
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode %s line %d: %w", path, line, err)
		}
		if !cb(p) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

// CountPapers returns the number of records in a papers artifact.
func (s *Store) CountPapers(path string) (int, error) {
	n := 0
	err := s.ScanPapers(path, func(domain.Paper) bool {
		n++
		return true
	})
	return n, err
}

// PaperWriter writes a papers artifact to a .tmp sibling; Commit renames
// it into place so readers never observe a partial artifact.
type PaperWriter struct {
	path    string
	tmpPath string
	f       *os.File
	w       *bufio.Writer
	enc     *json.Encoder
}

// NewPaperWriter starts writing the artifact at path, creating the data
// directory if needed.
func (s *Store) NewPaperWriter(path string) (*PaperWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(filepath.Clean(tmpPath))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmpPath, err)
	}

	w := bufio.NewWriter(f)
	return &PaperWriter{
		path:    path,
		tmpPath: tmpPath,
		f:       f,
		w:       w,
		enc:     json.NewEncoder(w),
	}, nil
}

// Write appends one paper as a JSON line.
func (pw *PaperWriter) Write(p domain.Paper) error {
	if err := pw.enc.Encode(p); err != nil {
		return fmt.Errorf("encode paper %s: %w", p.ID, err)
	}
	return nil
}

// Commit flushes and renames the artifact into place.
func (pw *PaperWriter) Commit() error {
	if err := pw.w.Flush(); err != nil {
		_ = pw.f.Close()
		return fmt.Errorf("flush %s: %w", pw.tmpPath, err)
	}
	if err := pw.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", pw.tmpPath, err)
	}
	if err := os.Rename(pw.tmpPath, pw.path); err != nil {
		return fmt.Errorf("rename %s: %w", pw.tmpPath, err)
	}
	return nil
}

// Abort discards the partial artifact. Safe to call after Commit.
func (pw *PaperWriter) Abort() {
	_ = pw.f.Close()
	_ = os.Remove(pw.tmpPath)
}
