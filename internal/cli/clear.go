package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/modelpull/modelpull/pkg/orchestrator"
)

// NewClearCmd creates the clear command.
func NewClearCmd() *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "clear MANIFEST",
		Short: "Remove the manifest's files from the cache",
		Long: `Clear deletes the cached files of the manifest along with any staging
leftovers and prunes cache directories that end up empty. Other models in
the cache are not touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd, args[0], cacheDir)
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "cache directory (overrides MODELPULL_CACHE_DIR and the config file)")

	return cmd
}

func runClear(cmd *cobra.Command, manifestPath, cacheDir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	orch, err := buildOrchestrator(cfg, orchestrator.Hooks{})
	if err != nil {
		return err
	}

	result, err := orch.Clear(m, orchestrator.Options{
		CacheDir: resolveCacheDir(cacheDir, cfg),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d files (%s)\n",
		result.FilesRemoved, humanize.Bytes(uint64(result.BytesFreed)))
	return nil
}
