package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
)

func TestConfigInitAndShow(t *testing.T) {
	configPath := testEnv(t)

	stdout, _, err := runCommand(t, NewConfigCmd(), "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, configPath)
	assert.FileExists(t, configPath)

	_, _, err = runCommand(t, NewConfigCmd(), "init")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidPath)

	_, _, err = runCommand(t, NewConfigCmd(), "init", "--force")
	require.NoError(t, err)

	stdout, _, err = runCommand(t, NewConfigCmd(), "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, configPath)
	assert.Regexp(t, `output_format\s+text`, stdout)
	assert.Regexp(t, `log_level\s+info`, stdout)
	assert.Regexp(t, `token\s+-`, stdout)
}

func TestConfigSetAndGet(t *testing.T) {
	testEnv(t)

	_, _, err := runCommand(t, NewConfigCmd(), "set", "cache_dir", "/data/models")
	require.NoError(t, err)
	_, _, err = runCommand(t, NewConfigCmd(), "set", "token", "s3cret")
	require.NoError(t, err)

	stdout, _, err := runCommand(t, NewConfigCmd(), "get", "cache_dir")
	require.NoError(t, err)
	assert.Equal(t, "/data/models", strings.TrimSpace(stdout))

	// show redacts the token; get prints it for scripting.
	stdout, _, err = runCommand(t, NewConfigCmd(), "show")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "s3cret")
	assert.Regexp(t, `token\s+\(set\)`, stdout)

	stdout, _, err = runCommand(t, NewConfigCmd(), "get", "token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", strings.TrimSpace(stdout))
}

func TestConfigRejectsBadInput(t *testing.T) {
	testEnv(t)

	_, _, err := runCommand(t, NewConfigCmd(), "set", "log_level", "chatty")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrConfig)
	assert.Equal(t, ExitParse, ExitCode(err))

	_, _, err = runCommand(t, NewConfigCmd(), "set", "color", "always")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrConfig)

	_, _, err = runCommand(t, NewConfigCmd(), "get", "color")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrConfig)
}
