//go:build integration

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modelpull/modelpull/internal/logger"
	"github.com/modelpull/modelpull/pkg/cache"
	"github.com/modelpull/modelpull/pkg/download"
	"github.com/modelpull/modelpull/pkg/source"
)

// setupIntegrationEnv isolates a test from the ambient environment and
// returns the path the --config flag should point at.
func setupIntegrationEnv(t *testing.T) string {
	t.Helper()

	t.Setenv(source.EnvSource, "")
	t.Setenv(cache.EnvCacheDir, "")
	t.Setenv(download.EnvToken, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	logger.SetTestOutput(io.Discard)
	t.Cleanup(logger.UnsetTestOutput)

	return filepath.Join(t.TempDir(), "config.yaml")
}

// chdir moves the process into dir for the duration of the test and
// restores the previous working directory afterwards. Stand-in for
// testing.T.Chdir, which needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("chdir cleanup: " + err.Error())
		}
	})
}

// runCLI executes the root command in-process with captured output.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}

// createSampleModelDir writes a small model layout:
//
//	<root>/model/weights.bin
//	<root>/model/config.json
func createSampleModelDir(t *testing.T, root string) string {
	t.Helper()

	dir := filepath.Join(root, "model")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weights.bin"), []byte("fake weights for integration tests\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"hidden_size": 8}`), 0o644))
	return dir
}

// startModelServer serves modelDir as a mirror for modelID, optionally
// requiring a bearer token.
func startModelServer(t *testing.T, modelDir, modelID, token string) *httptest.Server {
	t.Helper()

	files := http.StripPrefix("/"+modelID+"/", http.FileServer(http.Dir(modelDir)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		files.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// generateManifestViaCLI runs `modelpull manifest create` against a mirror
// endpoint and returns the manifest path.
func generateManifestViaCLI(t *testing.T, cfgPath, modelDir, outDir, modelID, endpoint string) string {
	t.Helper()

	manifestPath := filepath.Join(outDir, "model.manifest.json")
	_, _, err := runCLI(t, "--config", cfgPath, "manifest", "create", modelDir, manifestPath,
		"--id", modelID,
		"--source-name", "local",
		"--source-type", "mirror",
		"--endpoint", endpoint)
	require.NoError(t, err, "manifest create should succeed")
	return manifestPath
}
