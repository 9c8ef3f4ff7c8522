package cli

import (
	"errors"
	"os"

	"github.com/modelpull/modelpull/internal/logger"
	"github.com/modelpull/modelpull/pkg/cache"
	"github.com/modelpull/modelpull/pkg/config"
	"github.com/modelpull/modelpull/pkg/download"
	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/manifest"
	"github.com/modelpull/modelpull/pkg/orchestrator"
	"github.com/modelpull/modelpull/pkg/source"
	"github.com/modelpull/modelpull/pkg/verify"
)

// These variables will be set by the main package.
var (
	ConfigPath *string
	Verbose    *bool
)

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		// An empty path produces a descriptive error once the config is
		// actually read or written.
		logger.Warn("Failed to get default config path, using empty path", logger.Fields{"error": err})
		return ""
	}
	return defaultPath
}

// loadConfig reads the tool configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	logger.InitLogger(cfg.Settings.LogLevel)

	return cfg, nil
}

// buildOrchestrator wires the production collaborators: config-file source
// overrides, the HTTP download manager and the streaming verifier.
func buildOrchestrator(cfg *config.Config, hooks orchestrator.Hooks) (*orchestrator.Orchestrator, error) {
	userPath, projectPath := source.DefaultOverridePaths()
	overrides, err := source.LoadOverrides(userPath, projectPath)
	if err != nil {
		return nil, err
	}

	agent := cfg.Settings.UserAgent
	if agent == "" {
		agent = "modelpull/" + Version
	}

	return orchestrator.New(source.NewResolver(overrides), download.NewManager(agent), verify.NewVerifier(), hooks), nil
}

// loadManifest parses the manifest file named on the command line.
func loadManifest(path string) (*manifest.Manifest, error) {
	m, err := manifest.ParseManifestFromFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "manifest %s does not exist", path)
		}
		return nil, err
	}
	return m, nil
}

// resolveToken picks the bearer token: the flag wins, then the environment,
// then the config file.
func resolveToken(flagToken string, cfg *config.Config) string {
	if flagToken != "" {
		return flagToken
	}
	if env := os.Getenv(download.EnvToken); env != "" {
		return env
	}
	return cfg.Settings.Token
}

// resolveCacheDir picks the cache root override: the flag wins, then the
// environment, then the config file. Empty means the platform default.
func resolveCacheDir(flagDir string, cfg *config.Config) string {
	if flagDir != "" {
		return flagDir
	}
	if env := os.Getenv(cache.EnvCacheDir); env != "" {
		return env
	}
	return cfg.Settings.CacheDir
}
