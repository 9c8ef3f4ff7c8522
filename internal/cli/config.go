package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modelpull/modelpull/pkg/config"
	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
)

var configKeys = []string{"cache_dir", "token", "user_agent", "output_format", "log_level"}

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tool configuration",
		Long: `Config reads and writes the tool's own settings file. Download sources
are configured separately through the source override files.`,
	}
	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigInitCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configured settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd)
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print a single configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  `Set updates one setting and writes the config file back. Valid keys: ` + strings.Join(configKeys, ", ") + `.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func runConfigShow(cmd *cobra.Command) error {
	path := getConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config file: %s\n\n", path)
	w := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, key := range configKeys {
		value, _ := configValue(cfg, key)
		if key == "token" && value != "" {
			value = "(set)"
		}
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	return w.Flush()
}

func runConfigGet(cmd *cobra.Command, key string) error {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return err
	}
	value, err := configValue(cfg, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	path, err := configPathForWrite()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveConfig(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", key, path)
	return nil
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	path, err := configPathForWrite()
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return pkgerrors.Wrapf(pkgerrors.ErrInvalidPath, "config file exists (use --force to overwrite): %s", path)
		}
	}
	if err := config.DefaultConfig().SaveConfig(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func configValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "cache_dir":
		return cfg.Settings.CacheDir, nil
	case "token":
		return cfg.Settings.Token, nil
	case "user_agent":
		return cfg.Settings.UserAgent, nil
	case "output_format":
		return cfg.Settings.OutputFormat, nil
	case "log_level":
		return cfg.Settings.LogLevel, nil
	default:
		return "", pkgerrors.Wrapf(pkgerrors.ErrConfig, "unknown config key %q (valid: %s)", key, strings.Join(configKeys, ", "))
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "cache_dir":
		cfg.Settings.CacheDir = value
	case "token":
		cfg.Settings.Token = value
	case "user_agent":
		cfg.Settings.UserAgent = value
	case "output_format":
		cfg.Settings.OutputFormat = value
	case "log_level":
		cfg.Settings.LogLevel = value
	default:
		return pkgerrors.Wrapf(pkgerrors.ErrConfig, "unknown config key %q (valid: %s)", key, strings.Join(configKeys, ", "))
	}
	return nil
}

// configPathForWrite returns the config file path for commands that write
// it. Unlike reads, writes cannot proceed without a concrete path.
func configPathForWrite() (string, error) {
	path := getConfigPath()
	if path == "" {
		return "", pkgerrors.Wrap(pkgerrors.ErrConfig, "no config path available (pass --config)")
	}
	return path, nil
}
