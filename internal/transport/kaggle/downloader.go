// Package kaggle downloads the arXiv metadata snapshot archive from the
// Kaggle datasets API.
package kaggle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/domain"
	"github.com/paperdex/paperdex/internal/metrics"
)

// DefaultURL is the Kaggle download endpoint of the arXiv dataset.
const DefaultURL = "https://www.kaggle.com/api/v1/datasets/download/Cornell-University/arxiv"

const archiveName = "arxiv.zip"

// progressInterval limits progress logging frequency.
const progressInterval = 5 * time.Second

// Config holds download settings. Username and Key come from the
// KAGGLE_USERNAME and KAGGLE_KEY environment variables.
type Config struct {
	URL      string
	Username string
	Key      string
}

// CredentialsFromEnv reads Kaggle API credentials from the environment.
func CredentialsFromEnv() (string, string, error) {
	user := os.Getenv("KAGGLE_USERNAME")
	key := os.Getenv("KAGGLE_KEY")
	if user == "" || key == "" {
		return "", "", fmt.Errorf("%w: KAGGLE_USERNAME and KAGGLE_KEY must be set", domain.ErrConfig)
	}
	return user, key, nil
}

// Downloader fetches and unpacks the dataset archive.
type Downloader struct {
	client *http.Client
	cfg    Config
	log    *zap.Logger
}

// New creates a downloader.
func New(cfg Config, log *zap.Logger) *Downloader {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &Downloader{
		client: &http.Client{Timeout: 0}, // long download, ctx governs cancellation
		cfg:    cfg,
		log:    log,
	}
}

// Fetch downloads the archive into destDir, resuming a partial download
// when one is present, and extracts the JSON member. Returns the path of
// the extracted snapshot.
func (d *Downloader) Fetch(ctx context.Context, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", destDir, err)
	}

	archivePath := filepath.Join(destDir, archiveName)
	if _, err := os.Stat(archivePath); err != nil {
		if err := d.download(ctx, archivePath); err != nil {
			return "", err
		}
	} else {
		d.log.Info("archive already downloaded", zap.String("path", archivePath))
	}

	return d.extract(archivePath, destDir)
}

// download streams the archive to a .part sibling and renames it into
// place once complete. An existing .part resumes with a Range request.
func (d *Downloader) download(ctx context.Context, archivePath string) error {
	partPath := archivePath + ".part"

	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(d.cfg.Username, d.cfg.Key)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		d.log.Info("resuming download", zap.Int64("offset", offset))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w: %v", domain.ErrConnectivity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the range; start over.
		offset = 0
		flags |= os.O_TRUNC
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file already covers the full archive.
		return os.Rename(partPath, archivePath)
	default:
		return fmt.Errorf("download: %w: %s", domain.ErrService, resp.Status)
	}

	f, err := os.OpenFile(filepath.Clean(partPath), flags, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", partPath, err)
	}

	pr := &progressReader{
		r:     resp.Body,
		done:  offset,
		total: expectedTotal(offset, resp.ContentLength),
		log:   d.log,
	}
	if _, err := io.Copy(f, pr); err != nil {
		_ = f.Close()
		return fmt.Errorf("download: %w: %v", domain.ErrConnectivity, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", partPath, err)
	}

	d.log.Info("download complete", zap.Int64("bytes", pr.done))
	return os.Rename(partPath, archivePath)
}

// extract unpacks the first .json member of the archive into destDir.
func (d *Downloader) extract(archivePath, destDir string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer func() { _ = zr.Close() }()

	for _, member := range zr.File {
		if !strings.HasSuffix(member.Name, ".json") {
			continue
		}
		// Base strips any archive-internal directories.
		outPath := filepath.Join(destDir, filepath.Base(member.Name))
		if err := extractMember(member, outPath); err != nil {
			return "", err
		}
		d.log.Info("extracted snapshot",
			zap.String("member", member.Name),
			zap.String("path", outPath))
		return outPath, nil
	}
	return "", fmt.Errorf("%w: archive %s holds no .json member", domain.ErrService, archivePath)
}

func extractMember(member *zip.File, outPath string) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(filepath.Clean(outPath))
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // trusted dataset archive
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", member.Name, err)
	}
	return out.Close()
}

// expectedTotal is the full archive size for percent reporting, or 0 when
// the server does not announce a Content-Length.
func expectedTotal(offset, contentLength int64) int64 {
	if contentLength <= 0 {
		return 0
	}
	return offset + contentLength
}

// progressReader counts bytes and logs progress at most every 5 seconds.
type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	last  time.Time
	log   *zap.Logger
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		metrics.DownloadBytesTotal.Add(float64(n))
		if time.Since(p.last) >= progressInterval {
			p.last = time.Now()
			fields := []zap.Field{zap.Int64("bytes", p.done)}
			if p.total > 0 {
				fields = append(fields,
					zap.Int64("total", p.total),
					zap.Float64("percent", float64(p.done)/float64(p.total)*100))
			}
			p.log.Info("downloading", fields...)
		}
	}
	return n, err
}
