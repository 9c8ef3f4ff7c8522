package cli

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpull/modelpull/pkg/cache"
	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
)

// testServer serves testContent for every path and counts requests.
func testServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(testContent))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestEnsureCommand(t *testing.T) {
	testEnv(t)
	srv, hits := testServer(t)

	tmp := t.TempDir()
	manifestPath := writeTestManifest(t, tmp, srv.URL)
	cacheDir := filepath.Join(tmp, "cache")

	stdout, stderr, err := runCommand(t, NewEnsureCmd(), manifestPath, "--cache-dir", cacheDir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, cachedPath(cacheDir, "model.bin"), lines[0])
	assert.Equal(t, cachedPath(cacheDir, "config.json"), lines[1])
	for _, line := range lines {
		data, readErr := os.ReadFile(line)
		require.NoError(t, readErr)
		assert.Equal(t, testContent, string(data))
	}
	assert.EqualValues(t, 2, hits.Load())
	assert.Contains(t, stderr, "downloading: model.bin")

	// The second run finds valid cached copies and stays off the network.
	stdout2, stderr2, err := runCommand(t, NewEnsureCmd(), manifestPath, "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Equal(t, stdout, stdout2)
	assert.EqualValues(t, 2, hits.Load())
	assert.Contains(t, stderr2, "done: model.bin (cached)")
}

func TestEnsureCommandSingleFile(t *testing.T) {
	testEnv(t)
	srv, hits := testServer(t)

	tmp := t.TempDir()
	manifestPath := writeTestManifest(t, tmp, srv.URL)
	cacheDir := filepath.Join(tmp, "cache")

	stdout, _, err := runCommand(t, NewEnsureCmd(), manifestPath, "--cache-dir", cacheDir, "--file", "config.json")
	require.NoError(t, err)
	assert.Equal(t, cachedPath(cacheDir, "config.json"), strings.TrimSpace(stdout))
	assert.EqualValues(t, 1, hits.Load())
	assert.NoFileExists(t, cachedPath(cacheDir, "model.bin"))

	_, _, err = runCommand(t, NewEnsureCmd(), manifestPath, "--cache-dir", cacheDir, "--file", "vocab.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	assert.Contains(t, err.Error(), "vocab.txt")
}

func TestEnsureCommandMissingManifest(t *testing.T) {
	testEnv(t)

	_, _, err := runCommand(t, NewEnsureCmd(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestEnsureCommandCacheDirPrecedence(t *testing.T) {
	configPath := testEnv(t)
	srv, _ := testServer(t)

	tmp := t.TempDir()
	manifestPath := writeTestManifest(t, tmp, srv.URL)

	fromConfig := filepath.Join(tmp, "from-config")
	require.NoError(t, os.WriteFile(configPath, []byte("settings:\n  cache_dir: "+fromConfig+"\n"), 0o644))

	_, _, err := runCommand(t, NewEnsureCmd(), manifestPath)
	require.NoError(t, err)
	assert.FileExists(t, cachedPath(fromConfig, "model.bin"))

	// The environment variable beats the config file.
	fromEnv := filepath.Join(tmp, "from-env")
	t.Setenv(cache.EnvCacheDir, fromEnv)
	_, _, err = runCommand(t, NewEnsureCmd(), manifestPath)
	require.NoError(t, err)
	assert.FileExists(t, cachedPath(fromEnv, "model.bin"))
}
