package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modelpull/modelpull/pkg/manifest"
)

// NewManifestCmd creates the manifest command group.
func NewManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with model manifests",
	}
	cmd.AddCommand(newManifestCreateCmd())
	return cmd
}

type manifestCreateFlags struct {
	id         string
	revision   string
	sourceName string
	sourceType string
	endpoint   string
	url        string
	repo       string
	force      bool
}

func newManifestCreateCmd() *cobra.Command {
	var flags manifestCreateFlags

	cmd := &cobra.Command{
		Use:   "create DIR OUTPUT",
		Short: "Generate a manifest from a directory of model files",
		Long: `Create walks DIR, hashes every regular file and writes a manifest to
OUTPUT. The manifest declares a single source, which also becomes its
default.`,
		Example: `  modelpull manifest create ./model model.manifest.json --id acme/bert-base
  modelpull manifest create ./model model.manifest.json --id acme/bert-base \
    --source-name mirror --source-type mirror --endpoint https://models.acme.internal`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifestCreate(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringVar(&flags.id, "id", "", "model identifier, e.g. org/name (required)")
	cmd.Flags().StringVar(&flags.revision, "revision", "main", "model revision the files correspond to")
	cmd.Flags().StringVar(&flags.sourceName, "source-name", "huggingface", "name of the declared source")
	cmd.Flags().StringVar(&flags.sourceType, "source-type", string(manifest.KindHuggingFace), "source type: huggingface, direct or mirror")
	cmd.Flags().StringVar(&flags.endpoint, "endpoint", "", "endpoint for huggingface and mirror sources")
	cmd.Flags().StringVar(&flags.url, "url", "", "full download URL for direct sources")
	cmd.Flags().StringVar(&flags.repo, "repo", "", "repository for huggingface sources (defaults to the model id)")
	cmd.Flags().BoolVar(&flags.force, "force", false, "overwrite an existing output file")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runManifestCreate(cmd *cobra.Command, dir, output string, flags manifestCreateFlags) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		return err
	}

	gen := manifest.NewGenerator(absDir, absOutput, flags.id, flags.revision)
	gen.SourceName = flags.sourceName
	gen.Source = manifest.Source{
		Kind:     manifest.SourceKind(flags.sourceType),
		Endpoint: flags.endpoint,
		URL:      flags.url,
		Repo:     flags.repo,
	}
	gen.ForceOverwrite = flags.force

	if err := gen.Generate(cmd.Context()); err != nil {
		return err
	}

	m, err := manifest.ParseManifestFromFile(absOutput)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s with %d files for %s@%s\n",
		absOutput, len(m.Files()), m.ID(), m.Revision())
	return nil
}
