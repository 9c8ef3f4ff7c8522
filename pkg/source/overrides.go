// Package source loads source override configs and resolves which source,
// and finally which URL, a model file is fetched from.
package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
	"github.com/modelpull/modelpull/pkg/manifest"
)

// Override config wire format: a flat list of named sources plus an
// optional default-source name.
type overridesDoc struct {
	Sources       []overrideSourceDoc `json:"sources"`
	DefaultSource string              `json:"defaultSource,omitempty"`
}

type overrideSourceDoc struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Endpoint string `json:"endpoint,omitempty"`
	URL      string `json:"url,omitempty"`
	Repo     string `json:"repo,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// Overrides holds the source definitions merged from the user-level and
// project-level config files. Entries merge by name with project-level
// winning on conflict; the default-source names of both levels are kept
// apart because they sit on different precedence levels.
type Overrides struct {
	sources        map[string]manifest.Source
	userDefault    string
	projectDefault string
}

// DefaultOverridePaths returns the user-level and project-level override
// file locations. The user path is empty when the OS reports no config
// directory for the current user.
func DefaultOverridePaths() (userPath, projectPath string) {
	if dir, err := os.UserConfigDir(); err == nil {
		userPath = filepath.Join(dir, fsutil.AppName, "sources.json")
	}
	return userPath, filepath.Join(".modelpull", "sources.json")
}

// LoadOverrides reads the user-level and then the project-level override
// file. Either path may be empty or point to a missing file; both mean "no
// overrides at that level". Malformed files fail with errors.ErrParse.
func LoadOverrides(userPath, projectPath string) (*Overrides, error) {
	overrides := &Overrides{sources: map[string]manifest.Source{}}
	if err := overrides.mergeFile(userPath, &overrides.userDefault); err != nil {
		return nil, err
	}
	if err := overrides.mergeFile(projectPath, &overrides.projectDefault); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (o *Overrides) mergeFile(path string, defaultSlot *string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapFS(err, "read source config "+path)
	}

	var doc overridesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(errors.ErrParse, "decode source config %s: %v", path, err)
	}

	for i, s := range doc.Sources {
		if s.Name == "" {
			return errors.Wrapf(errors.ErrParse, "source config %s: source %d: name is required", path, i)
		}
		if s.Type == "" {
			return errors.Wrapf(errors.ErrParse, "source config %s: source %s: type is required", path, s.Name)
		}
		kind := manifest.SourceKind(s.Type)
		if !kind.Valid() {
			return errors.Wrapf(errors.ErrParse, "source config %s: source %s: unknown type %q", path, s.Name, s.Type)
		}
		o.sources[s.Name] = manifest.Source{
			Kind:     kind,
			Endpoint: s.Endpoint,
			URL:      s.URL,
			Repo:     s.Repo,
			Revision: s.Revision,
		}
	}

	if doc.DefaultSource != "" {
		*defaultSlot = doc.DefaultSource
	}
	return nil
}

// Source returns the override-defined source with the given name.
func (o *Overrides) Source(name string) (manifest.Source, bool) {
	src, ok := o.sources[name]
	return src, ok
}

// Names returns the override-defined source names in sorted order.
func (o *Overrides) Names() []string {
	names := make([]string, 0, len(o.sources))
	for name := range o.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserDefault returns the default-source name set by the user-level file.
func (o *Overrides) UserDefault() string {
	return o.userDefault
}

// ProjectDefault returns the default-source name set by the project-level
// file.
func (o *Overrides) ProjectDefault() string {
	return o.projectDefault
}
