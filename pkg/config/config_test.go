package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpull/modelpull/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "text", cfg.Settings.OutputFormat)
	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Empty(t, cfg.Settings.CacheDir)
	assert.Empty(t, cfg.Settings.Token)
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope", "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig("")
		require.ErrorIs(t, err, errors.ErrConfig)
	})

	t.Run("reads settings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		doc := `settings:
  cache_dir: /data/models
  token: hf_secret
  log_level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/data/models", cfg.Settings.CacheDir)
		assert.Equal(t, "hf_secret", cfg.Settings.Token)
		assert.Equal(t, "debug", cfg.Settings.LogLevel)
		assert.Equal(t, "text", cfg.Settings.OutputFormat, "unset fields get defaults")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("settings: ["), 0o644))

		_, err := LoadConfig(path)
		require.ErrorIs(t, err, errors.ErrConfig)
	})
}

func TestLoadConfigFromReader(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "full settings",
			doc: `settings:
  cache_dir: /srv/cache
  user_agent: custom-agent/1.0
  output_format: json
  log_level: warn
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/srv/cache", cfg.Settings.CacheDir)
				assert.Equal(t, "custom-agent/1.0", cfg.Settings.UserAgent)
				assert.Equal(t, "json", cfg.Settings.OutputFormat)
				assert.Equal(t, "warn", cfg.Settings.LogLevel)
			},
		},
		{
			name: "empty document gets defaults",
			doc:  "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "invalid log level",
			doc: `settings:
  log_level: verbose
`,
			wantErr: true,
		},
		{
			name: "invalid output format",
			doc: `settings:
  output_format: xml
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigFromReader(strings.NewReader(tt.doc))
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrConfig)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Settings.CacheDir = "/data/models"
	cfg.Settings.LogLevel = "debug"
	require.NoError(t, cfg.SaveConfig(path))

	leftovers, err := filepath.Glob(path + ".partial.*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestToYAML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.CacheDir = "/data/models"

	data, err := cfg.ToYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache_dir: /data/models")
	assert.Contains(t, string(data), "log_level: info")
}
