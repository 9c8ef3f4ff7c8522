// Package lock serializes access to cache entries across processes. A lock
// is an exclusively created sibling file of the protected path; holders
// write their PID into it for debuggability.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelpull/modelpull/internal/logger"
	"github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
)

// Suffix is appended to the protected path to form the lock file path.
const Suffix = ".lock"

// Defaults for Options.
const (
	DefaultTimeout    = 15 * time.Minute
	DefaultStaleAfter = 10 * time.Minute
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Options tunes lock acquisition.
type Options struct {
	// Timeout bounds the total time Acquire may wait for the lock.
	// Zero means DefaultTimeout.
	Timeout time.Duration
	// StaleAfter is the age past which a foreign lock file counts as
	// abandoned and gets broken. Zero means DefaultStaleAfter, negative
	// disables breaking.
	StaleAfter time.Duration
}

// Lock is a held cache lock. Release removes the underlying lock file.
type Lock struct {
	path string
}

// Acquire locks the cache entry at path with default options.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	return AcquireWithOptions(ctx, path, Options{})
}

// AcquireWithOptions locks the cache entry at path. It polls with
// exponential backoff until the lock file can be created exclusively, the
// timeout elapses (errors.ErrLockTimeout) or ctx is cancelled
// (errors.ErrCancelled). Lock files older than StaleAfter are presumed left
// behind by a dead process: they are removed and the acquisition retried
// immediately.
func AcquireWithOptions(ctx context.Context, path string, opts Options) (*Lock, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	staleAfter := opts.StaleAfter
	if staleAfter == 0 {
		staleAfter = DefaultStaleAfter
	}

	lockPath := path + Suffix
	if err := fsutil.EnsureFileDir(lockPath); err != nil {
		return nil, errors.WrapFS(err, "create lock directory")
	}

	deadline := time.Now().Add(timeout)
	backoff := initialBackoff
	for {
		file, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fsutil.FileModeDefault)
		if err == nil {
			fmt.Fprintf(file, "%d\n", os.Getpid())
			if closeErr := file.Close(); closeErr != nil {
				_ = os.Remove(lockPath)
				return nil, errors.Wrap(closeErr, "write lock file")
			}
			return &Lock{path: lockPath}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.WrapFS(err, "create lock file "+lockPath)
		}

		if staleAfter > 0 {
			if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleAfter {
				logger.Warn("breaking stale lock", logger.Fields{
					"lock": lockPath,
					"age":  time.Since(info.ModTime()).Round(time.Second).String(),
				})
				_ = os.Remove(lockPath)
				continue
			}
		}

		if !time.Now().Before(deadline) {
			return nil, errors.Wrapf(errors.ErrLockTimeout,
				"waited %s for %s (another process may be fetching; remove the lock file if it is abandoned)",
				timeout, lockPath)
		}

		select {
		case <-ctx.Done():
			return nil, errors.WrapCancelled(errors.Wrap(ctx.Err(), "wait for lock "+lockPath))
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Release removes the lock file. Safe to call more than once. Failures are
// logged rather than returned; the protected operation already finished and
// a leftover lock file resolves itself through the stale break.
func (l *Lock) Release() {
	if l == nil || l.path == "" {
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("release lock %s: %v", l.path, err)
	}
	l.path = ""
}
