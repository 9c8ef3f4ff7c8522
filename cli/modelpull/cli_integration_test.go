//go:build integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationVersionCommand(t *testing.T) {
	setupIntegrationEnv(t)

	stdout, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "modelpull version")
}

// TestIntegrationConfigDrivenCacheDir writes the cache dir with `config set`
// and expects ensure to pick it up without a flag.
func TestIntegrationConfigDrivenCacheDir(t *testing.T) {
	cfgPath := setupIntegrationEnv(t)
	tmp := t.TempDir()

	cacheDir := filepath.Join(tmp, "cache-from-config")
	_, _, err := runCLI(t, "--config", cfgPath, "config", "set", "cache_dir", cacheDir)
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "--config", cfgPath, "config", "get", "cache_dir")
	require.NoError(t, err)
	assert.Contains(t, stdout, cacheDir)

	modelDir := createSampleModelDir(t, tmp)
	srv := startModelServer(t, modelDir, "acme/demo", "")
	manifestPath := generateManifestViaCLI(t, cfgPath, modelDir, tmp, "acme/demo", srv.URL)

	_, _, err = runCLI(t, "--config", cfgPath, "ensure", manifestPath)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cacheDir, "acme", "demo", "main", "weights.bin"))
}

// TestIntegrationProjectOverrideWins points the project-level source config
// at a second mirror and expects it to beat the manifest's default source.
func TestIntegrationProjectOverrideWins(t *testing.T) {
	cfgPath := setupIntegrationEnv(t)
	tmp := t.TempDir()

	modelDir := createSampleModelDir(t, tmp)
	// The manifest's own source demands a token nobody passes, so resolving
	// through it would fail with an auth error.
	manifestSrv := startModelServer(t, modelDir, "acme/demo", "locked")
	overrideSrv := startModelServer(t, modelDir, "acme/demo", "")
	manifestPath := generateManifestViaCLI(t, cfgPath, modelDir, tmp, "acme/demo", manifestSrv.URL)

	work := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(work, ".modelpull"), 0o755))
	doc := `{"sources": [{"name": "mirror", "type": "mirror", "endpoint": "` + overrideSrv.URL + `"}], "defaultSource": "mirror"}`
	require.NoError(t, os.WriteFile(filepath.Join(work, ".modelpull", "sources.json"), []byte(doc), 0o644))
	chdir(t, work)

	cacheDir := filepath.Join(tmp, "cache")
	_, _, err := runCLI(t, "--config", cfgPath, "ensure", manifestPath, "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cacheDir, "acme", "demo", "main", "weights.bin"))
}
