package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/lmsfoundry/scormhost/iox"
	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/types"
)

// DefaultTimeout bounds a single archive download. A stalled remote must
// fail rather than hold a request slot indefinitely.
const DefaultTimeout = 30 * time.Second

// DefaultMaxArchiveBytes caps the downloaded archive size (1 GiB).
const DefaultMaxArchiveBytes = 1 * 1024 * 1024 * 1024

// Config configures the fetcher.
type Config struct {
	// Timeout is the per-fetch deadline (default 30s). Applied on top of
	// any deadline already present on the caller's context.
	Timeout time.Duration
	// MaxArchiveBytes caps the archive download size (default 1 GiB).
	MaxArchiveBytes int64
	// S3 configures the s3:// source. Zero value uses the AWS default
	// credential and endpoint chain.
	S3 S3Config
}

// Fetcher retrieves package archives into scratch files. It dispatches
// on the reference's URL scheme: http(s) via net/http, s3 via the AWS
// SDK, file for local fixtures. No retries at this layer; retry policy
// belongs to callers.
type Fetcher struct {
	config Config
	client *http.Client
	logger *log.Logger
	s3     *s3Source
}

// New creates a fetcher. The logger is required.
func New(cfg Config, logger *log.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxArchiveBytes <= 0 {
		cfg.MaxArchiveBytes = DefaultMaxArchiveBytes
	}
	return &Fetcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		s3:     newS3Source(cfg.S3),
	}
}

// Fetch downloads the archive behind ref into dest, streaming without
// buffering the whole body in memory. Returns the byte count written.
// All failures come back as a classified *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, ref types.PackageRef, dest string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	u, err := url.Parse(string(ref))
	if err != nil {
		return 0, newFetchError(ref, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err))
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		body, err = f.openHTTP(ctx, string(ref))
	case "s3":
		body, err = f.s3.open(ctx, u)
	case "file":
		body, err = openFile(u)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		fe := newFetchError(ref, err)
		f.logger.Error("archive fetch failed", map[string]any{
			"ref":   string(ref),
			"kind":  fe.Kind.Error(),
			"error": err.Error(),
		})
		return 0, fe
	}
	defer iox.DiscardClose(body)

	n, err := f.writeScratch(body, dest)
	if err != nil {
		return 0, newFetchError(ref, err)
	}

	f.logger.Debug("archive fetched", map[string]any{
		"ref":   string(ref),
		"bytes": n,
	})
	return n, nil
}

// openHTTP issues the GET request and validates the response status.
func (f *Fetcher) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		iox.DiscardClose(resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrRemoteStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

// openFile serves file:// references, used by tests and air-gapped
// deployments that mount packages locally.
func openFile(u *url.URL) (io.ReadCloser, error) {
	path := u.Path
	if u.Host != "" {
		// file://host/path is not meaningful here; treat host as the
		// first path segment for relative-style references.
		path = filepath.Join(u.Host, u.Path)
	}
	return os.Open(path)
}

// writeScratch streams body into dest, enforcing the archive size cap.
func (f *Fetcher) writeScratch(body io.Reader, dest string) (int64, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create scratch file: %w", err)
	}
	defer iox.DiscardClose(out)

	n, err := io.Copy(out, io.LimitReader(body, f.config.MaxArchiveBytes+1))
	if err != nil {
		return 0, fmt.Errorf("write scratch file: %w", err)
	}
	if n > f.config.MaxArchiveBytes {
		return 0, fmt.Errorf("archive exceeds size cap of %d bytes", f.config.MaxArchiveBytes)
	}
	return n, nil
}
