// Package cache decides where model files live on disk and clears them
// again. Path construction is pure; only the Manager touches the
// filesystem.
package cache

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
)

// EnvCacheDir names the environment variable that overrides the cache root.
const EnvCacheDir = "MODELPULL_CACHE_DIR"

// DefaultRevision is used when a manifest revision is empty.
const DefaultRevision = "main"

// ResolveRoot returns the cache root directory: the per-call override if
// set, else the environment variable, else the platform cache directory.
// The slot for a build-time default between the last two is reserved.
func ResolveRoot(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(EnvCacheDir); env != "" {
		return env, nil
	}
	root, err := fsutil.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "locate user cache directory")
	}
	return root, nil
}

// PathFor computes the cache location of one manifest file:
//
//	{root}/{modelID}/{revision}/{basename(filePath)}
//
// The model id's forward slashes become native separators; the file path
// collapses to its base name. Pure function: no I/O. Components that would
// escape the root fail with errors.ErrInvalidPath.
func PathFor(root, modelID, revision, filePath string) (string, error) {
	if root == "" {
		return "", errors.Wrap(errors.ErrInvalidPath, "cache root is empty")
	}

	if err := validateModelID(modelID); err != nil {
		return "", err
	}

	if revision == "" {
		revision = DefaultRevision
	}
	if strings.ContainsAny(revision, `/\`) || revision == "." || revision == ".." {
		return "", errors.Wrapf(errors.ErrInvalidPath, "revision %q is not a valid directory name", revision)
	}

	fileName := path.Base(filePath)
	if fileName == "." || fileName == ".." || fileName == "/" || fileName == "" {
		return "", errors.Wrapf(errors.ErrInvalidPath, "file path %q has no usable base name", filePath)
	}

	cleanRoot := filepath.Clean(root)
	full := filepath.Join(cleanRoot, filepath.FromSlash(modelID), revision, fileName)

	// Final guard: the joined path must stay inside the root.
	rel, err := filepath.Rel(cleanRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(errors.ErrInvalidPath, "path for %s/%s escapes the cache root", modelID, filePath)
	}
	return full, nil
}

func validateModelID(modelID string) error {
	if modelID == "" {
		return errors.Wrap(errors.ErrInvalidPath, "model id is empty")
	}
	for _, segment := range strings.Split(modelID, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return errors.Wrapf(errors.ErrInvalidPath, "model id %q is not a valid directory path", modelID)
		}
	}
	return nil
}
