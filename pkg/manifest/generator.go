package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
)

// Generator builds a manifest.json from a directory of model files. Every
// regular file under Dir is hashed and recorded with its path relative to
// Dir, using forward slashes. The generator only reads local files; it never
// touches the network.
type Generator struct {
	// Dir is the root directory containing the model files.
	Dir string
	// OutputPath is the full path of the manifest file to write.
	OutputPath string
	// ID and Revision identify the model the files belong to.
	ID       string
	Revision string
	// SourceName and Source become the manifest's single declared source
	// and its default.
	SourceName string
	Source     Source
	// ForceOverwrite controls whether an existing output file is replaced.
	ForceOverwrite bool
}

// NewGenerator creates a Generator with the required fields set.
func NewGenerator(dir, outputPath, id, revision string) *Generator {
	return &Generator{
		Dir:        dir,
		OutputPath: outputPath,
		ID:         id,
		Revision:   revision,
	}
}

// Validate checks whether the generator is properly configured.
func (g *Generator) Validate() error {
	if g.Dir == "" {
		return errors.Wrap(errors.ErrInvalidPath, "model directory is required")
	}
	if g.OutputPath == "" {
		return errors.Wrap(errors.ErrInvalidPath, "output path is required")
	}
	if g.ID == "" {
		return errors.Wrap(errors.ErrParse, "model id is required")
	}
	if g.Revision == "" {
		return errors.Wrap(errors.ErrParse, "model revision is required")
	}
	if g.SourceName == "" {
		return errors.Wrap(errors.ErrParse, "source name is required")
	}
	if !g.Source.Kind.Valid() {
		return errors.Wrapf(errors.ErrParse, "source %s: unknown type %q", g.SourceName, g.Source.Kind)
	}

	if fi, err := os.Stat(g.Dir); os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrInvalidPath, "model directory does not exist: %s", g.Dir)
	} else if err != nil {
		return errors.WrapFS(err, "stat model directory")
	} else if !fi.IsDir() {
		return errors.Wrapf(errors.ErrInvalidPath, "not a directory: %s", g.Dir)
	}

	if !g.ForceOverwrite {
		if _, err := os.Stat(g.OutputPath); err == nil {
			return errors.Wrapf(errors.ErrInvalidPath, "output file exists (use force to overwrite): %s", g.OutputPath)
		}
	}
	return nil
}

// Generate scans the model directory and writes the manifest file. The
// produced manifest parses back with ParseManifestFromFile.
func (g *Generator) Generate(ctx context.Context) error {
	if err := g.Validate(); err != nil {
		return err
	}

	files, err := g.collectFiles(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Wrapf(errors.ErrInvalidPath, "no files found under %s", g.Dir)
	}

	m := &Manifest{
		id:            g.ID,
		revision:      g.Revision,
		files:         files,
		sources:       map[string]Source{g.SourceName: g.Source},
		defaultSource: g.SourceName,
	}
	data, err := m.ToJSON()
	if err != nil {
		return err
	}

	return fsutil.WriteAtomic(g.OutputPath, func(stagingPath string) error {
		return os.WriteFile(stagingPath, data, fsutil.FileModeDefault)
	})
}

// collectFiles walks Dir in lexical order and hashes every regular file.
// The output file is skipped in case it lives inside Dir.
func (g *Generator) collectFiles(ctx context.Context) ([]FileEntry, error) {
	absOutput, err := filepath.Abs(g.OutputPath)
	if err != nil {
		return nil, errors.Wrap(err, "resolve output path")
	}

	var files []FileEntry
	walkErr := filepath.WalkDir(g.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == absOutput {
			return nil
		}

		rel, err := filepath.Rel(g.Dir, path)
		if err != nil {
			return err
		}
		digest, size, err := hashFile(path)
		if err != nil {
			return err
		}
		files = append(files, FileEntry{
			Path:   filepath.ToSlash(rel),
			SHA256: digest,
			Size:   &size,
		})
		return nil
	})
	if walkErr != nil {
		return nil, errors.WrapCancelled(errors.Wrapf(walkErr, "scan %s", g.Dir))
	}
	return files, nil
}

func hashFile(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, errors.WrapFS(err, "open "+path)
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, errors.Wrapf(err, "hash %s", path)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
