package grammar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// HTTPDownloader fetches grammar blobs over HTTP(S) and caches them on disk
// under Dir, mirroring the original smgrep grammar manager's
// disk-cache-then-network strategy.
type HTTPDownloader struct {
	Dir    string
	Client *http.Client
}

// NewHTTPDownloader builds a downloader rooted at dir.
func NewHTTPDownloader(dir string) *HTTPDownloader {
	return &HTTPDownloader{Dir: dir, Client: http.DefaultClient}
}

func (d *HTTPDownloader) grammarPath(name string) string {
	return filepath.Join(d.Dir, fmt.Sprintf("tree-sitter-%s.wasm", name))
}

// Download returns the cached bytes for name if present on disk, else
// fetches url, persists the result, and returns it.
func (d *HTTPDownloader) Download(ctx context.Context, name, url string) ([]byte, error) {
	path := d.grammarPath(name)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating grammar dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading grammar %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading grammar %q: http status %d", name, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading grammar %q response: %w", name, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing grammar %q: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("finalizing grammar %q: %w", name, err)
	}

	return data, nil
}
