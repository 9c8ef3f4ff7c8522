// Package testutil provides helpers for binary-level integration tests.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestServer is a plain HTTP file server for tests that need a stable URL
// before the test binary runs.
type TestServer struct {
	Server *http.Server
	URL    string
}

// NewTestServer creates a server that exposes dir at the root path. Mirror
// sources request <model-id>/<file>, so dir is expected to contain one
// subdirectory per model id.
func NewTestServer(port int, dir string) *TestServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: http.FileServer(http.Dir(dir)),
	}

	return &TestServer{
		Server: server,
		URL:    fmt.Sprintf("http://localhost:%d", port),
	}
}

// Start starts the test server
func (ts *TestServer) Start(t *testing.T) {
	t.Helper()
	go func() {
		if err := ts.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("Test server error: %v", err)
		}
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)
}

// Stop stops the test server
func (ts *TestServer) Stop(t *testing.T) {
	t.Helper()
	if ts.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := ts.Server.Shutdown(ctx); err != nil {
			t.Logf("Error shutting down test server: %v", err)
		}
	}
}

// WriteModelFixture creates <root>/<modelID>/ with a small set of model
// files and returns the created directory.
func WriteModelFixture(t *testing.T, root, modelID string) string {
	t.Helper()

	dir := filepath.Join(root, filepath.FromSlash(modelID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create model fixture dir: %v", err)
	}

	files := map[string]string{
		"weights.bin": "fixture weights\n",
		"config.json": `{"hidden_size": 8}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write model fixture %s: %v", name, err)
		}
	}
	return dir
}

// SetupTestConfig writes a config file that points the cache at cacheDir
// and returns the config path.
func SetupTestConfig(t *testing.T, cacheDir string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "settings:\n" +
		"  cache_dir: " + cacheDir + "\n" +
		"  log_level: error\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}
