//go:generate mockgen -destination=./mocks/orchestrator.go -package=mocks . SourceResolver,Downloader,Verifier

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelpull/modelpull/internal/logger"
	"github.com/modelpull/modelpull/pkg/cache"
	"github.com/modelpull/modelpull/pkg/download"
	pkgerrors "github.com/modelpull/modelpull/pkg/errors"
	"github.com/modelpull/modelpull/pkg/fsutil"
	"github.com/modelpull/modelpull/pkg/lock"
	"github.com/modelpull/modelpull/pkg/manifest"
	"github.com/modelpull/modelpull/pkg/source"
)

// SourceResolver is the subset of the source resolver used by the orchestrator.
type SourceResolver interface {
	Resolve(m *manifest.Manifest, file manifest.FileEntry, explicit string) (source.Resolved, error)
}

// Downloader is the subset of the download manager used by the orchestrator.
type Downloader interface {
	Download(ctx context.Context, rawURL, dest string, opts download.Options) error
}

// Verifier checks cached files against their manifest entries.
type Verifier interface {
	Verify(ctx context.Context, path, expectedSHA256 string, expectedSize *int64) error
	IsValid(ctx context.Context, path, expectedSHA256 string, expectedSize *int64) bool
}

// Orchestrator ties source resolution, locking, download and verification
// together into idempotent ensure operations.
type Orchestrator struct {
	Resolver SourceResolver
	DL       Downloader
	Verifier Verifier
	Hooks    Hooks // Hooks for progress and event notifications
}

// Event represents a simple progress notification.
type Event struct {
	Phase string // resolving|waiting|downloading|verifying|done
	Path  string // manifest file path
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// Options control orchestrator execution.
type Options struct {
	// Source selects where files come from: empty for the configured
	// precedence chain, a source name, or a literal http(s)/file URL.
	Source string
	// CacheDir overrides the cache root.
	CacheDir string
	// Token is sent as a bearer token on downloads.
	Token string
	// Force re-fetches files even when the cached copy is valid.
	Force bool
	// Progress receives raw transfer progress.
	Progress download.ProgressFunc
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// EnsureFile makes one manifest file present and valid in the cache and
// returns its local path. A valid cached copy short-circuits without
// locking or network traffic unless opts.Force is set. Concurrent ensures
// of the same path serialize through the lock manager; whoever loses the
// race finds the file already valid and returns it.
func (o *Orchestrator) EnsureFile(ctx context.Context, m *manifest.Manifest, entry manifest.FileEntry, opts Options) (string, error) {
	if o.Resolver == nil {
		return "", fmt.Errorf("source resolver is not configured")
	}
	if o.DL == nil {
		return "", fmt.Errorf("download manager is not configured")
	}
	if o.Verifier == nil {
		return "", fmt.Errorf("verifier is not configured")
	}

	root, err := cache.ResolveRoot(opts.CacheDir)
	if err != nil {
		return "", err
	}
	path, err := cache.PathFor(root, m.ID(), m.Revision(), entry.Path)
	if err != nil {
		return "", err
	}

	if !opts.Force && o.Verifier.IsValid(ctx, path, entry.SHA256, entry.Size) {
		emit(o.Hooks, Event{Phase: "done", Path: entry.Path, Msg: "cached"})
		return path, nil
	}

	emit(o.Hooks, Event{Phase: "resolving", Path: entry.Path})
	resolved, err := o.Resolver.Resolve(m, entry, opts.Source)
	if err != nil {
		return "", err
	}

	emit(o.Hooks, Event{Phase: "waiting", Path: entry.Path, Msg: "acquiring file lock"})
	handle, err := lock.Acquire(ctx, path)
	if err != nil {
		return "", err
	}
	defer handle.Release()

	// A concurrent run may have fetched the file while we waited.
	if !opts.Force && o.Verifier.IsValid(ctx, path, entry.SHA256, entry.Size) {
		emit(o.Hooks, Event{Phase: "done", Path: entry.Path, Msg: "cached"})
		return path, nil
	}

	emit(o.Hooks, Event{Phase: "downloading", Path: entry.Path, Msg: resolved.URL})
	err = fsutil.WriteAtomic(path, func(staging string) error {
		if err := o.DL.Download(ctx, resolved.URL, staging, download.Options{Token: opts.Token, Progress: opts.Progress}); err != nil {
			return err
		}
		emit(o.Hooks, Event{Phase: "verifying", Path: entry.Path})
		return o.Verifier.Verify(ctx, staging, entry.SHA256, entry.Size)
	})
	if err != nil {
		return "", err
	}

	logger.Info("file ready", logger.Fields{
		"file":   entry.Path,
		"path":   path,
		"source": resolved.Name,
	})
	emit(o.Hooks, Event{Phase: "done", Path: entry.Path, Msg: "downloaded"})
	return path, nil
}

// EnsureFiles ensures every file of the manifest sequentially, in manifest
// order, and returns a map from manifest file path to local path. The
// manifest's first file is its primary artifact.
func (o *Orchestrator) EnsureFiles(ctx context.Context, m *manifest.Manifest, opts Options) (map[string]string, error) {
	files := m.Files()
	paths := make(map[string]string, len(files))
	for _, entry := range files {
		path, err := o.EnsureFile(ctx, m, entry, opts)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "ensure %s", entry.Path)
		}
		paths[entry.Path] = path
	}
	return paths, nil
}

// VerifyResult is the outcome of VerifyFiles for one manifest file.
type VerifyResult struct {
	// Path is the file's path inside the manifest.
	Path string
	// LocalPath is where the cache expects the file.
	LocalPath string
	// Err is nil when the cached copy is present and intact. Corrupt
	// copies are deleted and reported as errors.ErrSizeMismatch or
	// errors.ErrHashMismatch; absent ones as errors.ErrNotFound.
	Err error
}

// VerifyFiles re-checks every cached file of the manifest against its
// digest and size, in manifest order, without touching the network.
// Corrupt copies are deleted so the next ensure fetches them again.
func (o *Orchestrator) VerifyFiles(ctx context.Context, m *manifest.Manifest, opts Options) ([]VerifyResult, error) {
	if o.Verifier == nil {
		return nil, fmt.Errorf("verifier is not configured")
	}
	root, err := cache.ResolveRoot(opts.CacheDir)
	if err != nil {
		return nil, err
	}

	files := m.Files()
	results := make([]VerifyResult, 0, len(files))
	for _, entry := range files {
		path, err := cache.PathFor(root, m.ID(), m.Revision(), entry.Path)
		if err != nil {
			return nil, err
		}
		emit(o.Hooks, Event{Phase: "verifying", Path: entry.Path})

		verifyErr := o.Verifier.Verify(ctx, path, entry.SHA256, entry.Size)
		if verifyErr != nil && errors.Is(verifyErr, pkgerrors.ErrCancelled) {
			return nil, verifyErr
		}
		results = append(results, VerifyResult{Path: entry.Path, LocalPath: path, Err: verifyErr})
	}
	return results, nil
}

// FileInfo describes one manifest file: where it would be fetched from and
// whether a valid copy is already cached.
type FileInfo struct {
	Path      string
	SHA256    string
	Size      *int64
	LocalPath string
	Source    source.Resolved
	Cached    bool
}

// Info resolves every manifest file without writing to disk or touching
// the network. The cached flag comes from a read-only probe.
func (o *Orchestrator) Info(ctx context.Context, m *manifest.Manifest, opts Options) ([]FileInfo, error) {
	if o.Resolver == nil {
		return nil, fmt.Errorf("source resolver is not configured")
	}
	if o.Verifier == nil {
		return nil, fmt.Errorf("verifier is not configured")
	}
	root, err := cache.ResolveRoot(opts.CacheDir)
	if err != nil {
		return nil, err
	}

	files := m.Files()
	infos := make([]FileInfo, 0, len(files))
	for _, entry := range files {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.WrapCancelled(err)
		}
		path, err := cache.PathFor(root, m.ID(), m.Revision(), entry.Path)
		if err != nil {
			return nil, err
		}
		resolved, err := o.Resolver.Resolve(m, entry, opts.Source)
		if err != nil {
			return nil, err
		}
		infos = append(infos, FileInfo{
			Path:      entry.Path,
			SHA256:    entry.SHA256,
			Size:      entry.Size,
			LocalPath: path,
			Source:    resolved,
			Cached:    o.Verifier.IsValid(ctx, path, entry.SHA256, entry.Size),
		})
	}
	return infos, nil
}

// Clear removes the manifest's cached files, cleans up staging leftovers
// and prunes directories that end up empty.
func (o *Orchestrator) Clear(m *manifest.Manifest, opts Options) (*cache.ClearResult, error) {
	root, err := cache.ResolveRoot(opts.CacheDir)
	if err != nil {
		return nil, err
	}
	return cache.NewManager(root).Clear(m)
}

// New constructs a default Orchestrator from existing collaborators. Helper
// for wiring. Hooks can be zero if no event handling is needed.
func New(resolver SourceResolver, dl Downloader, verifier Verifier, hooks Hooks) *Orchestrator {
	return &Orchestrator{
		Resolver: resolver,
		DL:       dl,
		Verifier: verifier,
		Hooks:    hooks,
	}
}
