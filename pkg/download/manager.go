// Package download fetches model files over HTTP(S) or from local file://
// URLs into the cache.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/modelpull/modelpull/internal/logger"
	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
)

// EnvToken names the environment variable holding the bearer token used
// when a per-call token isn't supplied.
const EnvToken = "MODELPULL_TOKEN"

const (
	retryAttempts  = 3
	copyBufferSize = 32 * 1024
)

// retryBackoff returns how long to wait after the given failed attempt.
// Overridable in tests.
var retryBackoff = func(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Options carries per-download parameters.
type Options struct {
	// Token is sent as a bearer token when non-empty; it overrides the
	// MODELPULL_TOKEN environment variable for this transfer.
	Token string
	// Progress, when set, receives throttled transfer events.
	Progress ProgressFunc
}

// Manager downloads files. Transfers carry no timeout of their own; the
// caller bounds them through ctx.
type Manager struct {
	client    *http.Client
	userAgent string
}

// NewManager creates a download manager that identifies itself with the
// given User-Agent.
func NewManager(userAgent string) *Manager {
	if userAgent == "" {
		userAgent = "modelpull"
	}
	return &Manager{
		client:    &http.Client{},
		userAgent: userAgent,
	}
}

// Download fetches rawURL into dest, creating parent directories as
// needed. HTTP(S) transfers are retried up to three times on transient
// failures (429, 5xx, connection errors) with exponentially growing
// delays; authentication failures, missing files and other client errors
// fail immediately. file:// URLs are copied without retries. Bytes land in
// dest directly; wrap Download in fsutil.WriteAtomic to keep readers from
// observing partial content.
func (m *Manager) Download(ctx context.Context, rawURL, dest string, opts Options) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %s: %w: %v", rawURL, pkgerrors.ErrDownloadFailed, err)
	}

	if err := fsutil.EnsureFileDir(dest); err != nil {
		return pkgerrors.WrapFS(err, "create download directory")
	}

	if parsed.Scheme == "file" {
		return m.copyLocal(ctx, parsed, dest, opts)
	}

	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		lastErr = m.fetchHTTP(ctx, rawURL, dest, opts)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) || attempt == retryAttempts {
			return lastErr
		}

		delay := retryBackoff(attempt)
		logger.Debug("retrying download", logger.Fields{
			"url":     rawURL,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   lastErr.Error(),
		})
		select {
		case <-ctx.Done():
			return pkgerrors.WrapCancelled(pkgerrors.Wrap(ctx.Err(), "wait before retry"))
		case <-time.After(delay):
		}
	}
	return lastErr
}

// fetchHTTP performs one GET attempt.
func (m *Manager) fetchHTTP(ctx context.Context, rawURL, dest string, opts Options) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request for %s: %w: %v", rawURL, pkgerrors.ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	if token := m.resolveToken(opts); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return pkgerrors.WrapCancelled(err)
		}
		return fmt.Errorf("request %s: %w: %w", rawURL, pkgerrors.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, rawURL)
	}

	return m.writeBody(ctx, resp.Body, dest, newProgressTracker(opts.Progress, rawURL, resp.ContentLength))
}

// copyLocal serves file:// URLs. Local copies are never retried.
func (m *Manager) copyLocal(ctx context.Context, u *url.URL, dest string, opts Options) error {
	if u.Host != "" && u.Host != "localhost" {
		return fmt.Errorf("file url host %q is not supported: %w", u.Host, pkgerrors.ErrDownloadFailed)
	}

	srcPath := filepath.FromSlash(u.Path)
	src, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "no file at %s", srcPath)
		}
		return pkgerrors.WrapFS(err, "open "+srcPath)
	}
	defer src.Close()

	var total int64
	if info, statErr := src.Stat(); statErr == nil {
		total = info.Size()
	}
	return m.writeBody(ctx, src, dest, newProgressTracker(opts.Progress, u.String(), total))
}

// writeBody streams the source into dest and fsyncs it. On failure the
// partly written dest is removed.
func (m *Manager) writeBody(ctx context.Context, body io.Reader, dest string, progress *progressTracker) error {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return pkgerrors.WrapFS(err, "create "+dest)
	}

	if err := copyWithContext(ctx, out, body, progress); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return pkgerrors.WrapFS(err, "sync "+dest)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return pkgerrors.WrapFS(err, "close "+dest)
	}

	progress.Finish()
	return nil
}

// copyWithContext streams src into dst in fixed-size chunks, checking for
// cancellation between chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, progress *progressTracker) error {
	buf := make([]byte, copyBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return pkgerrors.WrapCancelled(fmt.Errorf("transfer aborted: %w", err))
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return pkgerrors.WrapFS(writeErr, "write chunk")
			}
			progress.Add(n)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) {
				return pkgerrors.WrapCancelled(readErr)
			}
			return fmt.Errorf("read body: %w: %w", pkgerrors.ErrDownloadFailed, readErr)
		}
	}
}

func (m *Manager) resolveToken(opts Options) string {
	if opts.Token != "" {
		return opts.Token
	}
	return os.Getenv(EnvToken)
}

// httpStatusError carries the HTTP status for retry classification.
type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.url, e.status)
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(status int, rawURL string) error {
	statusErr := &httpStatusError{status: status, url: rawURL}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w (set %s or switch to a source you can reach)",
			pkgerrors.ErrAuthentication, statusErr, EnvToken)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %w (check the manifest's file paths and revision)",
			pkgerrors.ErrNotFound, statusErr)
	default:
		return fmt.Errorf("%w: %w", pkgerrors.ErrDownloadFailed, statusErr)
	}
}

// isTransient reports whether a failed attempt is worth retrying: 429 and
// 5xx responses plus connection-level failures. Cancellation and
// definitive client errors are final.
func isTransient(err error) bool {
	if errors.Is(err, pkgerrors.ErrCancelled) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusTooManyRequests ||
			statusErr.status >= http.StatusInternalServerError
	}
	return errors.Is(err, pkgerrors.ErrDownloadFailed)
}
