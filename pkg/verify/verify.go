// Package verify checks cached files against the size and SHA-256 digest
// pinned in a manifest.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/modelpull/modelpull/pkg/errors"
)

const bufferSize = 32 * 1024

// Verifier compares files on disk against manifest expectations.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks the file at path against the expected digest and, when
// expectedSize is non-nil, the expected byte size. Size is checked first
// since it's cheap. On a mismatch the corrupt file is deleted so the next
// ensure fetches it again, and ErrSizeMismatch or ErrHashMismatch is
// returned. A missing file fails with ErrNotFound. Digest comparison
// ignores case.
func (v *Verifier) Verify(ctx context.Context, path, expectedSHA256 string, expectedSize *int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrNotFound, "no cached file at %s", path)
		}
		return errors.WrapFS(err, "stat "+path)
	}

	if expectedSize != nil && info.Size() != *expectedSize {
		_ = os.Remove(path)
		return errors.Wrapf(errors.ErrSizeMismatch,
			"%s: expected %d bytes, found %d; removed the corrupt copy (rerun to fetch it again)",
			path, *expectedSize, info.Size())
	}

	actual, err := fileSHA256(ctx, path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expectedSHA256) {
		_ = os.Remove(path)
		return errors.Wrapf(errors.ErrHashMismatch,
			"%s: expected sha256 %s, computed %s; removed the corrupt copy (rerun to fetch it again, or update the manifest if the source changed)",
			path, expectedSHA256, actual)
	}
	return nil
}

// IsValid reports whether the file at path matches the expectations. It
// never deletes anything; every failure, including a missing file, simply
// yields false.
func (v *Verifier) IsValid(ctx context.Context, path, expectedSHA256 string, expectedSize *int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if expectedSize != nil && info.Size() != *expectedSize {
		return false
	}
	actual, err := fileSHA256(ctx, path)
	if err != nil {
		return false
	}
	return strings.EqualFold(actual, expectedSHA256)
}

// fileSHA256 streams path through SHA-256, checking for cancellation
// between reads.
func fileSHA256(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.WrapFS(err, "open "+path)
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, bufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", errors.WrapCancelled(errors.Wrap(err, "hash "+path))
		}
		n, readErr := file.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", errors.Wrap(readErr, "read "+path)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
