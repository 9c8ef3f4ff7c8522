// Package manifest defines the model manifest document and its parser. A
// manifest pins a model's identity, the files that make it up with their
// expected digests, and the sources the files can be fetched from.
package manifest

import "sort"

// SourceKind identifies how a download URL is built from a source.
type SourceKind string

// Supported source kinds.
const (
	KindHuggingFace SourceKind = "huggingface"
	KindDirect      SourceKind = "direct"
	KindMirror      SourceKind = "mirror"
)

// knownKinds lists every kind the parser accepts.
var knownKinds = map[SourceKind]bool{
	KindHuggingFace: true,
	KindDirect:      true,
	KindMirror:      true,
}

// Valid reports whether k is a supported source kind.
func (k SourceKind) Valid() bool {
	return knownKinds[k]
}

// FileEntry describes one file of a model: its manifest-relative path, the
// expected SHA-256 digest of its content, and an optional expected size in
// bytes (nil when the manifest doesn't pin one).
type FileEntry struct {
	Path   string
	SHA256 string
	Size   *int64
}

// Source describes one place a model's files can be fetched from. Which
// fields are meaningful depends on Kind: huggingface uses Endpoint, Repo and
// Revision (all optional), direct uses URL, mirror uses Endpoint.
type Source struct {
	Kind     SourceKind
	Endpoint string
	URL      string
	Repo     string
	Revision string
}

// Manifest is a parsed model manifest. It is immutable after parse; all
// accessors return copies where mutation could leak.
type Manifest struct {
	id            string
	revision      string
	files         []FileEntry
	sources       map[string]Source
	defaultSource string
}

// ID returns the slash-namespaced model identifier, e.g. "org/model".
func (m *Manifest) ID() string {
	return m.id
}

// Revision returns the model revision the manifest pins.
func (m *Manifest) Revision() string {
	return m.revision
}

// Files returns the file entries in manifest order.
func (m *Manifest) Files() []FileEntry {
	files := make([]FileEntry, len(m.files))
	copy(files, m.files)
	return files
}

// Primary returns the first file entry. Parsing guarantees at least one.
func (m *Manifest) Primary() FileEntry {
	return m.files[0]
}

// Source returns the named source declared by the manifest.
func (m *Manifest) Source(name string) (Source, bool) {
	src, ok := m.sources[name]
	return src, ok
}

// SourceNames returns the declared source names in sorted order.
func (m *Manifest) SourceNames() []string {
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSource returns the manifest's own default source name. It is the
// last fallback during source resolution and may be overridden externally.
func (m *Manifest) DefaultSource() string {
	return m.defaultSource
}
