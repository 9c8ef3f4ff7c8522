package manifest

import (
	"encoding/json"
	"io"
	"os"

	"github.com/modelpull/modelpull/pkg/errors"
)

// Wire format of the manifest document. Unknown fields are tolerated;
// validation checks required fields only.
type manifestDoc struct {
	Model         modelDoc             `json:"model"`
	Sources       map[string]sourceDoc `json:"sources"`
	DefaultSource string               `json:"defaultSource"`
}

type modelDoc struct {
	ID       string    `json:"id"`
	Revision string    `json:"revision"`
	Files    []fileDoc `json:"files"`
}

type fileDoc struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   *int64 `json:"size,omitempty"`
}

type sourceDoc struct {
	Type     string `json:"type"`
	Endpoint string `json:"endpoint,omitempty"`
	URL      string `json:"url,omitempty"`
	Repo     string `json:"repo,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// ParseManifest parses a manifest from JSON data. Every failure wraps
// errors.ErrParse.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(errors.ErrParse, "decode manifest: %v", err)
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}

	files := make([]FileEntry, len(doc.Model.Files))
	for i, f := range doc.Model.Files {
		files[i] = FileEntry{Path: f.Path, SHA256: f.SHA256, Size: f.Size}
	}

	sources := make(map[string]Source, len(doc.Sources))
	for name, s := range doc.Sources {
		sources[name] = Source{
			Kind:     SourceKind(s.Type),
			Endpoint: s.Endpoint,
			URL:      s.URL,
			Repo:     s.Repo,
			Revision: s.Revision,
		}
	}

	return &Manifest{
		id:            doc.Model.ID,
		revision:      doc.Model.Revision,
		files:         files,
		sources:       sources,
		defaultSource: doc.DefaultSource,
	}, nil
}

// ParseManifestFromReader parses a manifest from an io.Reader.
func ParseManifestFromReader(reader io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest data")
	}
	return ParseManifest(data)
}

// ParseManifestFromFile parses a manifest from a file on disk.
func ParseManifestFromFile(filePath string) (*Manifest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open manifest file %s", filePath)
	}
	defer file.Close()
	return ParseManifestFromReader(file)
}

// ToJSON renders the manifest back to its wire format.
func (m *Manifest) ToJSON() ([]byte, error) {
	doc := manifestDoc{
		Model: modelDoc{
			ID:       m.id,
			Revision: m.revision,
			Files:    make([]fileDoc, len(m.files)),
		},
		Sources:       make(map[string]sourceDoc, len(m.sources)),
		DefaultSource: m.defaultSource,
	}
	for i, f := range m.files {
		doc.Model.Files[i] = fileDoc{Path: f.Path, SHA256: f.SHA256, Size: f.Size}
	}
	for name, s := range m.sources {
		doc.Sources[name] = sourceDoc{
			Type:     string(s.Kind),
			Endpoint: s.Endpoint,
			URL:      s.URL,
			Repo:     s.Repo,
			Revision: s.Revision,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal manifest to JSON")
	}
	return data, nil
}

func (doc *manifestDoc) validate() error {
	if doc.Model.ID == "" {
		return errors.Wrap(errors.ErrParse, "model id is required")
	}
	if doc.Model.Revision == "" {
		return errors.Wrap(errors.ErrParse, "model revision is required")
	}
	if len(doc.Model.Files) == 0 {
		return errors.Wrap(errors.ErrParse, "model needs at least one file")
	}
	for i, f := range doc.Model.Files {
		if f.Path == "" {
			return errors.Wrapf(errors.ErrParse, "file %d: path is required", i)
		}
		if !isHexDigest(f.SHA256) {
			return errors.Wrapf(errors.ErrParse, "file %s: sha256 must be a 64 character hex digest", f.Path)
		}
		if f.Size != nil && *f.Size < 0 {
			return errors.Wrapf(errors.ErrParse, "file %s: size cannot be negative", f.Path)
		}
	}
	if len(doc.Sources) == 0 {
		return errors.Wrap(errors.ErrParse, "manifest needs at least one source")
	}
	for name, s := range doc.Sources {
		if s.Type == "" {
			return errors.Wrapf(errors.ErrParse, "source %s: type is required", name)
		}
		if !SourceKind(s.Type).Valid() {
			return errors.Wrapf(errors.ErrParse, "source %s: unknown type %q", name, s.Type)
		}
	}
	if doc.DefaultSource == "" {
		return errors.Wrap(errors.ErrParse, "defaultSource is required")
	}
	return nil
}

// isHexDigest reports whether s is a 64 character hexadecimal string.
// Case is not significant.
func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
