package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/manifest"
	"github.com/modelpull/modelpull/pkg/orchestrator"
)

type ensureFlags struct {
	source   string
	cacheDir string
	token    string
	file     string
	force    bool
}

// NewEnsureCmd creates the ensure command.
func NewEnsureCmd() *cobra.Command {
	var flags ensureFlags

	cmd := &cobra.Command{
		Use:   "ensure MANIFEST",
		Short: "Download and verify the files of a manifest",
		Long: `Ensure fetches every file listed in the manifest into the local cache,
verifying size and checksum. Files that are already cached and valid are left
untouched. On success the local path of each file is printed to stdout in
manifest order, primary file first; progress and events go to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnsure(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "source name or literal URL overriding the configured precedence")
	cmd.Flags().StringVar(&flags.cacheDir, "cache-dir", "", "cache directory (overrides MODELPULL_CACHE_DIR and the config file)")
	cmd.Flags().StringVar(&flags.token, "token", "", "bearer token for authenticated sources (overrides MODELPULL_TOKEN and the config file)")
	cmd.Flags().StringVar(&flags.file, "file", "", "ensure only the named manifest file")
	cmd.Flags().BoolVar(&flags.force, "force", false, "re-download even if the cached copy is valid")

	return cmd
}

func runEnsure(cmd *cobra.Command, manifestPath string, flags ensureFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	orch, err := buildOrchestrator(cfg, eventSink(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	opts := orchestrator.Options{
		Source:   flags.source,
		CacheDir: resolveCacheDir(flags.cacheDir, cfg),
		Token:    resolveToken(flags.token, cfg),
		Force:    flags.force,
		Progress: progressSink(os.Stderr),
	}

	out := cmd.OutOrStdout()
	if flags.file != "" {
		entry, ok := findFile(m, flags.file)
		if !ok {
			return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "manifest %s has no file %s", m.ID(), flags.file)
		}
		path, err := orch.EnsureFile(cmd.Context(), m, entry, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, path)
		return nil
	}

	paths, err := orch.EnsureFiles(cmd.Context(), m, opts)
	if err != nil {
		return err
	}
	for _, entry := range m.Files() {
		fmt.Fprintln(out, paths[entry.Path])
	}
	return nil
}

func findFile(m *manifest.Manifest, path string) (manifest.FileEntry, bool) {
	for _, entry := range m.Files() {
		if entry.Path == path {
			return entry, true
		}
	}
	return manifest.FileEntry{}, false
}
