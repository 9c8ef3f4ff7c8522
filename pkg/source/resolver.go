package source

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/modelpull/modelpull/internal/logger"
	"github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/manifest"
)

// EnvSource names the environment variable that selects a source by name.
const EnvSource = "MODELPULL_SOURCE"

// DefaultHuggingFaceEndpoint serves huggingface sources that don't pin
// their own endpoint.
const DefaultHuggingFaceEndpoint = "https://huggingface.co"

// builtinDefaultSource can be baked into a distribution at build time:
//
//	go build -ldflags "-X github.com/modelpull/modelpull/pkg/source.builtinDefaultSource=mirror"
//
// It sits between the config-file defaults and the manifest's own default.
var builtinDefaultSource string

// Origin identifies the precedence level that supplied a source.
type Origin string

// Origins, from highest to lowest precedence.
const (
	OriginLiteralURL Origin = "literal-url"
	OriginExplicit   Origin = "explicit"
	OriginEnv        Origin = "env"
	OriginProject    Origin = "project-config"
	OriginUser       Origin = "user-config"
	OriginBuiltin    Origin = "builtin"
	OriginManifest   Origin = "manifest"
)

// Resolved is the outcome of source resolution for one file.
type Resolved struct {
	// URL is the fully built download URL.
	URL string
	// Name is the source name the URL was built from. Empty when the
	// caller passed a literal URL.
	Name string
	// Origin records which precedence level supplied the source.
	Origin Origin
}

// Resolver maps a manifest file plus an optional per-call request to a
// download URL.
type Resolver struct {
	overrides *Overrides
}

// NewResolver creates a Resolver backed by the given merged overrides.
// A nil overrides behaves like an empty config.
func NewResolver(overrides *Overrides) *Resolver {
	if overrides == nil {
		overrides = &Overrides{sources: map[string]manifest.Source{}}
	}
	return &Resolver{overrides: overrides}
}

// Resolve returns the download URL for one manifest file. The explicit
// argument is the per-call request: empty, a source name, or a literal
// http(s)/file URL. A literal URL is returned as-is without any named
// lookup. Otherwise the source name is chosen by precedence (explicit,
// environment, project config default, user config default, built-in
// default, manifest default) and looked up in the override config first,
// then in the manifest. An unresolvable name fails with
// errors.ErrSourceNotFound.
func (r *Resolver) Resolve(m *manifest.Manifest, file manifest.FileEntry, explicit string) (Resolved, error) {
	if explicit != "" && isLiteralURL(explicit) {
		resolved := Resolved{URL: explicit, Origin: OriginLiteralURL}
		logResolved(resolved, file)
		return resolved, nil
	}

	name, origin := r.pickName(m, explicit)
	if name == "" {
		return Resolved{}, errors.Wrapf(errors.ErrSourceNotFound,
			"no source configured for model %s (declared sources: %s)",
			m.ID(), strings.Join(m.SourceNames(), ", "))
	}

	src, ok := r.overrides.Source(name)
	if !ok {
		src, ok = m.Source(name)
	}
	if !ok {
		return Resolved{}, errors.Wrapf(errors.ErrSourceNotFound,
			"source %q is not defined (declared sources: %s)",
			name, strings.Join(m.SourceNames(), ", "))
	}

	built, err := BuildURL(m, src, file)
	if err != nil {
		return Resolved{}, errors.Wrapf(err, "source %q", name)
	}

	resolved := Resolved{URL: built, Name: name, Origin: origin}
	logResolved(resolved, file)
	return resolved, nil
}

// pickName walks the name precedence levels below "literal URL".
func (r *Resolver) pickName(m *manifest.Manifest, explicit string) (string, Origin) {
	if explicit != "" {
		return explicit, OriginExplicit
	}
	if env := os.Getenv(EnvSource); env != "" {
		return env, OriginEnv
	}
	if name := r.overrides.ProjectDefault(); name != "" {
		return name, OriginProject
	}
	if name := r.overrides.UserDefault(); name != "" {
		return name, OriginUser
	}
	if builtinDefaultSource != "" {
		return builtinDefaultSource, OriginBuiltin
	}
	if name := m.DefaultSource(); name != "" {
		return name, OriginManifest
	}
	return "", ""
}

// BuildURL builds the download URL for file from src according to the
// source kind. Fields the source leaves empty fall back to the manifest's
// identity where the kind allows it.
func BuildURL(m *manifest.Manifest, src manifest.Source, file manifest.FileEntry) (string, error) {
	switch src.Kind {
	case manifest.KindHuggingFace:
		endpoint := src.Endpoint
		if endpoint == "" {
			endpoint = DefaultHuggingFaceEndpoint
		}
		repo := src.Repo
		if repo == "" {
			repo = m.ID()
		}
		revision := src.Revision
		if revision == "" {
			revision = m.Revision()
		}
		if revision == "" {
			revision = "main"
		}
		return fmt.Sprintf("%s/%s/resolve/%s/%s",
			strings.TrimRight(endpoint, "/"), repo, revision, file.Path), nil

	case manifest.KindDirect:
		if src.URL == "" {
			return "", errors.Wrap(errors.ErrSourceNotFound, "direct source has no url")
		}
		return src.URL, nil

	case manifest.KindMirror:
		if src.Endpoint == "" {
			return "", errors.Wrap(errors.ErrSourceNotFound, "mirror source has no endpoint")
		}
		return fmt.Sprintf("%s/%s/%s",
			strings.TrimRight(src.Endpoint, "/"), m.ID(), file.Path), nil

	default:
		return "", errors.Wrapf(errors.ErrSourceNotFound, "unsupported source kind %q", src.Kind)
	}
}

// isLiteralURL reports whether the per-call request is a fetchable URL
// rather than a source name.
func isLiteralURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "file":
		return true
	default:
		return false
	}
}

func logResolved(resolved Resolved, file manifest.FileEntry) {
	logger.Debug("resolved source", logger.Fields{
		"file":   file.Path,
		"source": resolved.Name,
		"origin": resolved.Origin,
		"url":    resolved.URL,
	})
}
