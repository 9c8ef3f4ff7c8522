//go:build integration

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpull/modelpull/internal/cli"
	"github.com/modelpull/modelpull/test/testutil"
)

func buildTestBinary(t *testing.T) string {
	t.Helper()

	// Create a temporary directory for the test binary
	tmpDir := t.TempDir()
	binaryPath := filepath.Join(tmpDir, "modelpull")
	if runtime.GOOS == "windows" {
		binaryPath += ".exe"
	}

	// Build the test binary from the project root
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cli/modelpull")
	cmd.Dir = filepath.Clean(filepath.Join("..", ".."))

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build test binary: %s", string(output))

	return binaryPath
}

// subprocessEnv keeps the child process away from the developer's real
// settings and sources.
func subprocessEnv() []string {
	return append(os.Environ(),
		"MODELPULL_CACHE_DIR=",
		"MODELPULL_SOURCE=",
		"MODELPULL_TOKEN=",
	)
}

// runBinary runs the built binary and requires success.
func runBinary(t *testing.T, binaryPath, configPath string, args ...string) string {
	t.Helper()

	cmd := exec.Command(binaryPath, append([]string{"--config", configPath}, args...)...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = subprocessEnv()

	require.NoError(t, cmd.Run(), "command %v failed: %s", args, stderr.String())
	return stdout.String()
}

type cliTest struct {
	name           string
	args           []string
	expectedOutput string
	expectedError  string
	expectedCode   int
}

func runCLITest(t *testing.T, binaryPath, configPath string, test cliTest) {
	t.Helper()

	t.Run(test.name, func(t *testing.T) {
		cmd := exec.Command(binaryPath, append([]string{"--config", configPath}, test.args...)...)

		// Capture output
		var stdout, stderr strings.Builder
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		cmd.Env = subprocessEnv()

		// Run the command with a timeout
		done := make(chan error, 1)
		go func() {
			done <- cmd.Run()
		}()

		select {
		case err := <-done:
			if test.expectedCode != 0 {
				require.Error(t, err, "expected exit code %d but command succeeded", test.expectedCode)
				var exitErr *exec.ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, test.expectedCode, exitErr.ExitCode(), "stderr: %s", stderr.String())
			} else if test.expectedError == "" {
				assert.NoError(t, err, "unexpected error: %v\nstderr: %s", err, stderr.String())
			}

			if test.expectedError != "" {
				require.Error(t, err, "expected error but got none")
				assert.Contains(t, stderr.String(), test.expectedError, "stderr should contain expected error")
			}
			if test.expectedOutput != "" {
				assert.Contains(t, stdout.String(), test.expectedOutput, "stdout should contain expected output")
			}

		case <-time.After(30 * time.Second):
			t.Fatal("Test timed out after 30 seconds")
		}
	})
}

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Serve a model fixture the way a mirror would.
	fixtureRoot := t.TempDir()
	modelDir := testutil.WriteModelFixture(t, fixtureRoot, "acme/demo")
	ts := testutil.NewTestServer(52781, fixtureRoot)
	ts.Start(t)
	defer ts.Stop(t)

	cacheDir := filepath.Join(t.TempDir(), "cache")
	configPath := testutil.SetupTestConfig(t, cacheDir)

	binaryPath := buildTestBinary(t)

	// Manifest fixtures for the error paths.
	missingManifest := filepath.Join(t.TempDir(), "does-not-exist.json")
	badManifest := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badManifest, []byte(`{"model": {`), 0o644))

	// A valid manifest generated by the binary itself.
	manifestPath := filepath.Join(t.TempDir(), "model.manifest.json")
	out := runBinary(t, binaryPath, configPath, "manifest", "create", modelDir, manifestPath,
		"--id", "acme/demo",
		"--source-name", "local",
		"--source-type", "mirror",
		"--endpoint", ts.URL)
	assert.Contains(t, out, "2 files")

	tests := []cliTest{
		// Basic commands
		{
			name:           "help command",
			args:           []string{"help"},
			expectedOutput: "modelpull makes the files of a model manifest present in a local cache",
		},
		{
			name:           "version command",
			args:           []string{"version"},
			expectedOutput: "modelpull version",
		},
		{
			name:           "config show",
			args:           []string{"config", "show"},
			expectedOutput: "KEY",
		},
		{
			name:           "sources command",
			args:           []string{"sources", manifestPath},
			expectedOutput: "local",
		},

		// The fetch path, in order: download, then observe the cached state.
		{
			name:           "ensure downloads from the mirror",
			args:           []string{"ensure", manifestPath},
			expectedOutput: "weights.bin",
		},
		{
			name:           "verify after ensure",
			args:           []string{"verify", manifestPath},
			expectedOutput: "ok",
		},
		{
			name:           "info sees the cached copies",
			args:           []string{"info", manifestPath},
			expectedOutput: "yes",
		},
		{
			name:           "clear removes the cached files",
			args:           []string{"clear", manifestPath},
			expectedOutput: "Removed 2 files",
		},

		// Error cases, one per exit code category.
		{
			name:          "unknown command",
			args:          []string{"nonexistent-command"},
			expectedError: "unknown command",
			expectedCode:  cli.ExitUnexpected,
		},
		{
			name:          "ensure missing manifest",
			args:          []string{"ensure", missingManifest},
			expectedError: "does not exist",
			expectedCode:  cli.ExitNotFound,
		},
		{
			name:          "ensure unparseable manifest",
			args:          []string{"ensure", badManifest},
			expectedError: "manifest parse failed",
			expectedCode:  cli.ExitParse,
		},
		{
			name:          "ensure unknown source",
			args:          []string{"ensure", manifestPath, "--source", "no-such"},
			expectedError: "is not defined",
			expectedCode:  cli.ExitSourceNotFound,
		},
		{
			name:          "verify after clear reports missing files",
			args:          []string{"verify", manifestPath},
			expectedCode:  cli.ExitNotFound,
		},
	}

	for _, tt := range tests {
		runCLITest(t, binaryPath, configPath, tt)
	}
}
