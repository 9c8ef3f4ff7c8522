// Package config loads and persists the modelpull tool configuration: the
// ambient settings like cache root, bearer token and log level. Download
// sources are configured separately through the override files handled by
// pkg/source.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	// General settings
	Settings Settings `yaml:"settings"`
}

// Settings represents general application settings.
type Settings struct {
	// CacheDir overrides where model files land. Empty means the
	// MODELPULL_CACHE_DIR variable or the platform cache directory.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// Token is the default bearer token for authenticated sources. The
	// MODELPULL_TOKEN variable and the --token flag take precedence.
	Token string `yaml:"token,omitempty"`

	// UserAgent overrides the User-Agent header sent on downloads.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Output settings
	OutputFormat string `yaml:"output_format"` // text, json
	LogLevel     string `yaml:"log_level"`     // error, warn, info, debug
}

// YAMLIndent is the number of spaces to use for YAML indentation.
const YAMLIndent = 2

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{
			OutputFormat: "text",
			LogLevel:     "info",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the
// default configuration; a present but malformed one is an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrConfig, "config path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfig, "resolve config path %s: %v", path, err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.WrapFS(err, "open config file "+path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfig, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig writes the configuration to path, replacing it atomically.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.Wrap(errors.ErrConfig, "config path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(errors.ErrConfig, "resolve config path %s: %v", path, err)
	}

	return fsutil.WriteAtomic(absPath, func(staging string) error {
		file, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
		if err != nil {
			return errors.WrapFS(err, "create config file")
		}

		encoder := yaml.NewEncoder(file)
		encoder.SetIndent(YAMLIndent)
		if err := encoder.Encode(c); err != nil {
			_ = file.Close()
			return errors.Wrap(err, "encode config")
		}
		if err := encoder.Close(); err != nil {
			_ = file.Close()
			return errors.Wrap(err, "flush config")
		}
		return file.Close()
	})
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.Wrap(errors.ErrConfig, "configuration is nil")
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Settings.OutputFormat] {
		return errors.Wrapf(errors.ErrConfig,
			"invalid output format %q (valid: text, json)", c.Settings.OutputFormat)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Settings.LogLevel)] {
		return errors.Wrapf(errors.ErrConfig,
			"invalid log level %q (valid: debug, info, warn, error)", c.Settings.LogLevel)
	}
	return nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = defaults.Settings.OutputFormat
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, fsutil.AppName, "config.yaml"), nil
}
