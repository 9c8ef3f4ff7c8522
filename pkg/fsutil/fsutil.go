// Package fsutil provides filesystem helpers and permission constants used
// throughout modelpull.
package fsutil

import (
	"os"
	"path/filepath"
)

// File and directory permission constants.
// These follow standard Unix permission conventions and are used consistently
// throughout the application.
const (
	FileModeDefault = 0o644 // -rw-r--r--: Default for regular files
	FileModeSecure  = 0o600 // -rw-------: For files that may carry tokens

	DirModeDefault = 0o755 // drwxr-xr-x: Default for directories
	DirModePrivate = 0o700 // drwx------: For private directories (owner only)
)

// AppName is the name of the application used in platform paths.
const AppName = "modelpull"

// EnsureDir creates a directory and all necessary parent directories with
// default permissions if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of a file path if it doesn't
// exist. Useful before creating the file itself.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// UserCacheDir returns the platform-specific cache directory for the
// application.
// On Linux: ~/.cache/modelpull/
// On macOS: ~/Library/Caches/modelpull/
// On Windows: %LOCALAPPDATA%\modelpull\cache\
func UserCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}
