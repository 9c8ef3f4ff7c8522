package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/orchestrator"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "verify MANIFEST",
		Short: "Re-check cached files against the manifest",
		Long: `Verify compares every cached file of the manifest against its expected
size and SHA-256 digest without touching the network. Corrupt copies are
deleted so the next ensure fetches them again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], cacheDir)
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "cache directory (overrides MODELPULL_CACHE_DIR and the config file)")

	return cmd
}

func runVerify(cmd *cobra.Command, manifestPath, cacheDir string) error {
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

	results, err := orch.VerifyFiles(cmd.Context(), m, orchestrator.Options{
		CacheDir: resolveCacheDir(cacheDir, cfg),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, TabWidth, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS")
	var failed *orchestrator.VerifyResult
	for i, res := range results {
		fmt.Fprintf(w, "%s\t%s\n", res.Path, verifyStatus(res.Err))
		if res.Err != nil && failed == nil {
			failed = &results[i]
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed != nil {
		return pkgerrors.Wrapf(failed.Err, "verify %s", failed.Path)
	}
	return nil
}

func verifyStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pkgerrors.ErrNotFound):
		return "missing"
	case errors.Is(err, pkgerrors.ErrSizeMismatch):
		return "size mismatch (deleted)"
	case errors.Is(err, pkgerrors.ErrHashMismatch):
		return "hash mismatch (deleted)"
	default:
		return err.Error()
	}
}
