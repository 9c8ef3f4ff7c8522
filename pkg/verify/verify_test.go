package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpull/modelpull/pkg/errors"
)

// sha256 of "hello world".
const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func int64p(v int64) *int64 { return &v }

func TestVerify(t *testing.T) {
	ctx := context.Background()
	verifier := NewVerifier()

	t.Run("valid file with pinned size", func(t *testing.T) {
		path := writeFile(t, "hello world")
		assert.NoError(t, verifier.Verify(ctx, path, helloDigest, int64p(11)))
	})

	t.Run("valid file without pinned size", func(t *testing.T) {
		path := writeFile(t, "hello world")
		assert.NoError(t, verifier.Verify(ctx, path, helloDigest, nil))
	})

	t.Run("digest comparison ignores case", func(t *testing.T) {
		path := writeFile(t, "hello world")
		assert.NoError(t, verifier.Verify(ctx, path, strings.ToUpper(helloDigest), nil))
	})

	t.Run("size mismatch deletes the file", func(t *testing.T) {
		path := writeFile(t, "hello world")

		err := verifier.Verify(ctx, path, helloDigest, int64p(100))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrSizeMismatch)
		assert.Contains(t, err.Error(), "expected 100 bytes, found 11")

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "corrupt file must be deleted")
	})

	t.Run("hash mismatch deletes the file", func(t *testing.T) {
		path := writeFile(t, "tampered content")

		err := verifier.Verify(ctx, path, helloDigest, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrHashMismatch)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "corrupt file must be deleted")
	})

	t.Run("missing file", func(t *testing.T) {
		err := verifier.Verify(ctx, filepath.Join(t.TempDir(), "nope.onnx"), helloDigest, nil)
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("cancelled context aborts hashing", func(t *testing.T) {
		path := writeFile(t, "hello world")

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		err := verifier.Verify(cancelled, path, helloDigest, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrCancelled)

		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "a cancelled verification must not delete anything")
	})
}

func TestIsValid(t *testing.T) {
	ctx := context.Background()
	verifier := NewVerifier()

	tests := []struct {
		name     string
		content  string
		digest   string
		size     *int64
		expected bool
	}{
		{name: "matching file", content: "hello world", digest: helloDigest, size: int64p(11), expected: true},
		{name: "matching file without size", content: "hello world", digest: helloDigest, size: nil, expected: true},
		{name: "wrong size", content: "hello world", digest: helloDigest, size: int64p(50), expected: false},
		{name: "wrong digest", content: "tampered", digest: helloDigest, size: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.content)

			assert.Equal(t, tt.expected, verifier.IsValid(ctx, path, tt.digest, tt.size))

			_, statErr := os.Stat(path)
			assert.NoError(t, statErr, "IsValid must never delete the file")
		})
	}

	t.Run("missing file is simply invalid", func(t *testing.T) {
		assert.False(t, verifier.IsValid(ctx, filepath.Join(t.TempDir(), "nope.onnx"), helloDigest, nil))
	})
}
