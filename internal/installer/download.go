package installer

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

// Downloader fetches dist archives over HTTP, trying each mirror URL in
// order (spec §4.5 "Download").
type Downloader struct {
	client *http.Client
}

// NewDownloader builds a Downloader using client, or http.DefaultClient
// if client is nil.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client}
}

// FetchToFile downloads the first URL in urls that succeeds, writing the
// response body to destPath, and returns the URL that worked. A
// transport failure (non-2xx status or request error) tries the next
// URL; if every URL fails, the last error is returned wrapped.
func (d *Downloader) FetchToFile(ctx context.Context, urls []string, destPath string) (usedURL string, err error) {
	if len(urls) == 0 {
		return "", errors.New("no download URLs available")
	}
	var lastErr error
	for _, url := range urls {
		if err := d.fetchOne(ctx, url, destPath); err != nil {
			lastErr = err
			continue
		}
		return url, nil
	}
	return "", errors.Wrapf(lastErr, "all %d download URL(s) failed", len(urls))
}

func (d *Downloader) fetchOne(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %q", url)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("fetching %q: status %d", url, resp.StatusCode)
	}

	tmp := destPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating %q", tmp)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %q", tmp)
	}
	f.Close()
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming %q into place", destPath)
	}
	return nil
}
