package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/modelpull/modelpull/pkg/manifest"
	"github.com/modelpull/modelpull/pkg/source"
)

// NewSourcesCmd creates the sources command.
func NewSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources MANIFEST",
		Short: "List the sources a manifest's files can be fetched from",
		Long: `Sources lists every source declared by the manifest together with the
entries of the user-level and project-level override files. Overrides win
over manifest declarations of the same name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(cmd, args[0])
		},
	}
}

func runSources(cmd *cobra.Command, manifestPath string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}
	userPath, projectPath := source.DefaultOverridePaths()
	overrides, err := source.LoadOverrides(userPath, projectPath)
	if err != nil {
		return err
	}

	names := map[string]struct{}{}
	for _, name := range m.SourceNames() {
		names[name] = struct{}{}
	}
	for _, name := range overrides.Names() {
		names[name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tDEFINED BY\tDEFAULT\tLOCATION")
	for _, name := range sorted {
		src, definedBy := lookupSource(m, overrides, name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name, src.Kind, definedBy, defaultMarks(m, overrides, name), locationLabel(src))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if env := os.Getenv(source.EnvSource); env != "" {
		fmt.Fprintf(out, "\n%s selects: %s\n", source.EnvSource, env)
	}
	return nil
}

func lookupSource(m *manifest.Manifest, overrides *source.Overrides, name string) (manifest.Source, string) {
	if src, ok := overrides.Source(name); ok {
		return src, "override"
	}
	src, _ := m.Source(name)
	return src, "manifest"
}

// defaultMarks names the config levels that declare this source as their
// default.
func defaultMarks(m *manifest.Manifest, overrides *source.Overrides, name string) string {
	var marks []string
	if overrides.ProjectDefault() == name {
		marks = append(marks, "project")
	}
	if overrides.UserDefault() == name {
		marks = append(marks, "user")
	}
	if m.DefaultSource() == name {
		marks = append(marks, "manifest")
	}
	if len(marks) == 0 {
		return "-"
	}
	return strings.Join(marks, ",")
}

func locationLabel(src manifest.Source) string {
	switch {
	case src.URL != "":
		return src.URL
	case src.Endpoint != "":
		return src.Endpoint
	default:
		return "-"
	}
}
