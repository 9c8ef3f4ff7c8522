// Package errors defines the sentinel errors shared across modelpull and
// small helpers for wrapping them with context. Callers match categories
// with errors.Is; the CLI maps each category to a distinct exit code.
package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Error categories.
var (
	// Manifest errors.
	ErrParse = fmt.Errorf("manifest parse failed")

	// Tool configuration errors.
	ErrConfig = fmt.Errorf("invalid configuration")

	// Source resolution errors.
	ErrSourceNotFound = fmt.Errorf("source not found")

	// Download errors.
	ErrAuthentication = fmt.Errorf("authentication failed")
	ErrNotFound       = fmt.Errorf("file not found")
	ErrDownloadFailed = fmt.Errorf("download failed")

	// Integrity errors.
	ErrSizeMismatch = fmt.Errorf("size mismatch")
	ErrHashMismatch = fmt.Errorf("hash mismatch")

	// Cache and filesystem errors.
	ErrLockTimeout = fmt.Errorf("lock timeout")
	ErrInvalidPath = fmt.Errorf("invalid path")
	ErrPermission  = fmt.Errorf("permission denied")

	// Operational errors.
	ErrCancelled = fmt.Errorf("operation cancelled")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapFS wraps a filesystem error, promoting permission failures to
// ErrPermission so callers can classify them.
func WrapFS(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%s: %w: %w", msg, ErrPermission, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapCancelled promotes context cancellation to ErrCancelled. Errors that
// are already classified, and errors unrelated to cancellation, pass
// through unchanged.
func WrapCancelled(err error) error {
	if err == nil || errors.Is(err, ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return err
}
