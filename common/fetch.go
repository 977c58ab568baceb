package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileDownloader fetches remote lesson documents into a local directory.
// Every download gets a fresh uuid-based name so concurrent invocations
// never collide.
type FileDownloader struct {
	log    *Logger
	client *http.Client
	dir    string
}

func NewFileDownloader(log *Logger, dir string, timeout time.Duration) *FileDownloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FileDownloader{
		log:    log.With("service", "FileDownloader"),
		client: &http.Client{Timeout: timeout},
		dir:    dir,
	}
}

// Fetch downloads rawURL and returns the local file path. The original
// extension is preserved so the extractor can dispatch on it.
func (f *FileDownloader) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	ext := ".bin"
	if parsed, err := url.Parse(rawURL); err == nil {
		if e := filepath.Ext(parsed.Path); e != "" {
			ext = e
		}
	}
	dest := filepath.Join(f.dir, uuid.New().String()+ext)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", rawURL, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("write %s: %w", dest, err)
	}

	f.log.Debug("downloaded lesson document", "url", rawURL, "path", dest)
	return dest, nil
}
