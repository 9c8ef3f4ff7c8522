package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/modelpull/modelpull/internal/logger"
	"github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
	"github.com/modelpull/modelpull/pkg/manifest"
)

// Manager removes cached model files. It never creates them; the
// orchestrator owns that side of the lifecycle.
type Manager struct {
	root string
}

// NewManager creates a Manager rooted at the given cache directory.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the cache root the manager operates on.
func (m *Manager) Root() string {
	return m.root
}

// ClearResult reports what Clear removed.
type ClearResult struct {
	FilesRemoved int
	BytesFreed   int64
}

// Clear deletes every cached file of the manifest, along with staging
// leftovers from crashed runs, and prunes directories that end up empty.
// Files of other models and revisions are untouched. Clearing an absent
// model is not an error.
func (m *Manager) Clear(man *manifest.Manifest) (*ClearResult, error) {
	result := &ClearResult{}
	var revisionDir string

	for _, file := range man.Files() {
		path, err := PathFor(m.root, man.ID(), man.Revision(), file.Path)
		if err != nil {
			return nil, err
		}
		revisionDir = filepath.Dir(path)

		if err := m.removeCounted(path, result); err != nil {
			return nil, err
		}

		leftovers, err := filepath.Glob(fsutil.PartialPattern(path))
		if err != nil {
			return nil, errors.Wrapf(err, "scan staging files for %s", path)
		}
		for _, leftover := range leftovers {
			if err := m.removeCounted(leftover, result); err != nil {
				return nil, err
			}
		}
	}

	m.pruneEmptyDirs(revisionDir)

	logger.Debug("cleared cache entries", logger.Fields{
		"model": man.ID(),
		"files": result.FilesRemoved,
		"bytes": result.BytesFreed,
		"root":  m.root,
	})
	return result, nil
}

// removeCounted deletes path if it exists and accounts for it in result.
func (m *Manager) removeCounted(path string, result *ClearResult) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapFS(err, "stat "+path)
	}
	if err := os.Remove(path); err != nil {
		return errors.WrapFS(err, "remove "+path)
	}
	result.FilesRemoved++
	result.BytesFreed += info.Size()
	return nil
}

// pruneEmptyDirs removes now-empty directories from dir up to, but never
// including, the cache root. Stops at the first non-empty directory.
func (m *Manager) pruneEmptyDirs(dir string) {
	root := filepath.Clean(m.root)
	for dir != "" && dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
