package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/manifest"
	"github.com/modelpull/modelpull/pkg/orchestrator"
	"github.com/modelpull/modelpull/pkg/source"
)

type infoFlags struct {
	source   string
	cacheDir string
	output   string
}

// NewInfoCmd creates the info command.
func NewInfoCmd() *cobra.Command {
	var flags infoFlags

	cmd := &cobra.Command{
		Use:   "info MANIFEST",
		Short: "Show where manifest files resolve to and whether they are cached",
		Long: `Info resolves the download URL and cache path for every file of the
manifest and reports whether a valid copy is already cached. Nothing is
downloaded or written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.source, "source", "", "source name or literal URL overriding the configured precedence")
	cmd.Flags().StringVar(&flags.cacheDir, "cache-dir", "", "cache directory (overrides MODELPULL_CACHE_DIR and the config file)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output format: text or json (default from the config file)")

	return cmd
}

func runInfo(cmd *cobra.Command, manifestPath string, flags infoFlags) error {
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

	infos, err := orch.Info(cmd.Context(), m, orchestrator.Options{
		Source:   flags.source,
		CacheDir: resolveCacheDir(flags.cacheDir, cfg),
	})
	if err != nil {
		return err
	}

	format := flags.output
	if format == "" {
		format = cfg.Settings.OutputFormat
	}
	switch format {
	case "json":
		return printInfoJSON(cmd.OutOrStdout(), m, infos)
	case "", "text":
		return printInfoText(cmd.OutOrStdout(), m, infos)
	default:
		return pkgerrors.Wrapf(pkgerrors.ErrConfig, "unsupported output format %q (valid: text, json)", format)
	}
}

func printInfoText(out io.Writer, m *manifest.Manifest, infos []orchestrator.FileInfo) error {
	fmt.Fprintf(out, "Model:    %s\n", m.ID())
	fmt.Fprintf(out, "Revision: %s\n\n", m.Revision())

	w := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE\tSOURCE\tCACHED\tPATH")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Path, sizeLabel(info.Size), sourceLabel(info.Source), yesNo(info.Cached), info.LocalPath)
	}
	return w.Flush()
}

type infoView struct {
	Model    string         `json:"model"`
	Revision string         `json:"revision"`
	Files    []infoFileView `json:"files"`
}

type infoFileView struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	Size      *int64 `json:"size,omitempty"`
	LocalPath string `json:"local_path"`
	Source    string `json:"source,omitempty"`
	Origin    string `json:"origin"`
	URL       string `json:"url"`
	Cached    bool   `json:"cached"`
}

func printInfoJSON(out io.Writer, m *manifest.Manifest, infos []orchestrator.FileInfo) error {
	view := infoView{
		Model:    m.ID(),
		Revision: m.Revision(),
		Files:    make([]infoFileView, 0, len(infos)),
	}
	for _, info := range infos {
		view.Files = append(view.Files, infoFileView{
			Path:      info.Path,
			SHA256:    info.SHA256,
			Size:      info.Size,
			LocalPath: info.LocalPath,
			Source:    info.Source.Name,
			Origin:    string(info.Source.Origin),
			URL:       info.Source.URL,
			Cached:    info.Cached,
		})
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func sizeLabel(size *int64) string {
	if size == nil {
		return "-"
	}
	return humanize.Bytes(uint64(*size))
}

func sourceLabel(r source.Resolved) string {
	if r.Name == "" {
		return string(r.Origin)
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Origin)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
