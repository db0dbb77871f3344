// Package fetch downloads package archives named by a repository index
// entry into a content-addressed local cache, the same atomic
// write-temp-then-rename pattern reposync uses for repo.toml and
// packages.json, adapted to binary archive payloads keyed by content hash
// rather than repository name.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/helper/log"
	"rookpkg/pkg/reposync"
	"rookpkg/pkg/resilience"
)

// Fetcher downloads and caches package archives under cacheDir, keyed by
// their published content hash.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	retry    *resilience.RetryPolicy
	logger   log.Logger
}

// New constructs a Fetcher caching archives under cacheDir.
func New(cacheDir string, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.NewBasicLogger(log.InfoLevel)
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 5 * time.Minute},
		cacheDir: cacheDir,
		retry:    resilience.ConservativeRetryPolicy(),
		logger:   logger,
	}
}

// Fetch returns the local path to entry's archive, downloading it from
// repoURL only if no cached copy with the expected content hash already
// exists, which is what makes an interrupted download resumable: a
// retried fetch checks the cache again before going back to the network.
// A cached file whose hash no longer matches (corruption, or a hash
// collision in a stale cache) is discarded and re-downloaded rather than
// trusted.
func (f *Fetcher) Fetch(ctx context.Context, repoURL string, entry reposync.PackageEntry) (string, error) {
	cachePath := filepath.Join(f.cacheDir, entry.Hash)

	if data, err := os.ReadFile(cachePath); err == nil {
		if hashHex(data) == entry.Hash {
			return cachePath, nil
		}
		_ = os.Remove(cachePath)
	}

	var body []byte
	err := f.retry.RetryWithLogger(ctx, func() error {
		b, ferr := f.download(ctx, repoURL, entry.Filename)
		if ferr != nil {
			return ferr
		}
		body = b
		return nil
	}, f.logger)
	if err != nil {
		return "", errors.Wrap(errors.ErrNetworkTimeout, "fetching archive %s: %v", entry.Filename, err)
	}

	actual := hashHex(body)
	if actual != entry.Hash {
		return "", errors.NewChecksumMismatch(entry.Hash, actual)
	}

	if err := f.writeCacheAtomic(cachePath, body); err != nil {
		return "", err
	}
	return cachePath, nil
}

func (f *Fetcher) download(ctx context.Context, baseURL, relPath string) ([]byte, error) {
	url := baseURL
	if len(url) == 0 || url[len(url)-1] != '/' {
		url += "/"
	}
	url += relPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Internalf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

func (f *Fetcher) writeCacheAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "creating package cache directory: %v", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "writing %s: %v", tmp, err)
	}
	if fh, err := os.Open(tmp); err == nil {
		_ = fh.Sync()
		fh.Close()
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "renaming %s into place: %v", path, err)
	}
	return nil
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
