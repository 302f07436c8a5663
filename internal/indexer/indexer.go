// Package indexer implements IncrementalIndexer: the state machine that
// orchestrates initial load, per-file refresh, and persistence around one
// index.Index (spec.md §4.4).
package indexer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aemelyanovff/dart-context/internal/analyzer"
	"github.com/aemelyanovff/dart-context/internal/index"
	"github.com/aemelyanovff/dart-context/internal/logging"
	"github.com/aemelyanovff/dart-context/internal/persist"
)

// State is the indexer's lifecycle state.
type State int

const (
	StateUnopened State = iota
	StateLoading
	StateLoaded
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "Unopened"
	case StateLoading:
		return "Loading"
	case StateLoaded:
		return "Loaded"
	case StateDisposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// Indexer owns exactly one index.Index for one package. Every mutating
// operation is serialized through opMu so that refreshFile calls enqueue
// and apply in causal order (spec.md §5).
type Indexer struct {
	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	packagePath string
	cacheDir    string
	adapter     analyzer.Adapter
	idx         *index.Index
	fromCache   bool

	debounce   time.Duration
	dirty      bool
	saveTimer  *time.Timer
	saveCancel chan struct{}

	broadcaster *Broadcaster
}

// Option configures New.
type Option func(*Indexer)

// WithDebounce overrides the default ~100ms persistence debounce window.
func WithDebounce(d time.Duration) Option {
	return func(i *Indexer) { i.debounce = d }
}

// New creates an Unopened Indexer for packagePath, persisting to cacheDir
// and consuming facts from adapter.
func New(packagePath, cacheDir string, adapter analyzer.Adapter, opts ...Option) *Indexer {
	i := &Indexer{
		state:       StateUnopened,
		packagePath: packagePath,
		cacheDir:    cacheDir,
		adapter:     adapter,
		debounce:    100 * time.Millisecond,
		broadcaster: NewBroadcaster(),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Events returns a new subscription to this indexer's broadcast stream.
func (i *Indexer) Events() (<-chan Event, func()) { return i.broadcaster.Subscribe() }

func (i *Indexer) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Indexer) Index() *index.Index {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.idx
}

// Adapter returns the AnalyzerAdapter this indexer was opened with, so
// callers outside the package (the workspace watcher) can forward
// filesystem events into the adapter's own change stream when it supports
// that (spec.md §4.3's fileChanges capability).
func (i *Indexer) Adapter() analyzer.Adapter { return i.adapter }

func (i *Indexer) setState(s State) {
	i.mu.Lock()
	i.state = s
	i.mu.Unlock()
}

// Open transitions Unopened -> Loading -> Loaded, per spec.md §4.4.
func (i *Indexer) Open(ctx context.Context, useCache bool) error {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	i.setState(StateLoading)
	start := time.Now()

	if useCache {
		if idx, ok := i.tryLoadCache(ctx); ok {
			i.mu.Lock()
			i.idx = idx
			i.fromCache = true
			i.state = StateLoaded
			i.mu.Unlock()

			stats := idx.Stats()
			i.broadcaster.Publish(Event{Kind: EventInitialIndex, FileCount: stats.Files, SymbolCount: stats.Symbols, FromCache: true, Duration: time.Since(start)})
			return nil
		}
	}

	idx := index.New(i.packagePath, i.packagePath)
	files, err := i.adapter.ListSourceFiles(ctx)
	if err != nil {
		i.setState(StateUnopened)
		return fmt.Errorf("list source files: %w", err)
	}
	for _, f := range files {
		rec, rerr := i.adapter.ResolveUnit(ctx, f)
		if rerr != nil {
			i.emitError(rerr, f)
			continue
		}
		if rec == nil {
			continue
		}
		if err := idx.UpdateDocument(rec.RelativePath, *rec); err != nil {
			i.emitError(err, rec.RelativePath)
		}
	}

	i.mu.Lock()
	i.idx = idx
	i.fromCache = false
	i.state = StateLoaded
	i.dirty = true
	i.mu.Unlock()

	stats := idx.Stats()
	i.broadcaster.Publish(Event{Kind: EventInitialIndex, FileCount: stats.Files, SymbolCount: stats.Symbols, FromCache: false, Duration: time.Since(start)})

	i.persistNow()
	return nil
}

// tryLoadCache applies the cache-validity policy from spec.md §4.4: the
// manifest's indexedAt must be newer than every indexable source file's
// mtime, and the recorded path set must match the current enumeration
// exactly. Any mismatch is a silent CacheStale -> full re-index, never an
// error surfaced to the caller.
func (i *Indexer) tryLoadCache(ctx context.Context) (*index.Index, bool) {
	m, err := persist.ReadManifest(i.cacheDir)
	if err != nil {
		return nil, false
	}

	lock, err := persist.AcquireDirLock(i.cacheDir)
	if err != nil {
		// Another process holds the lock, most likely rebuilding this same
		// artifact right now; treat that exactly like a cache miss rather
		// than racing it (spec.md §5's shared-resource policy).
		return nil, false
	}
	defer lock.Release()

	files, err := i.adapter.ListSourceFiles(ctx)
	if err != nil {
		return nil, false
	}
	current := make([]string, len(files))
	for k, f := range files {
		current[k] = toRelative(f, i.packagePath)
	}
	sort.Strings(current)

	recorded := append([]string{}, m.IndexedPaths...)
	sort.Strings(recorded)

	// The recorded path set must match the current enumeration exactly
	// (spec.md §4.4); a rename keeps the file count and mtime identical on
	// Linux, so this identity check has to run against the live filesystem
	// listing, not against anything reloaded from the manifest being
	// validated.
	if len(current) != len(recorded) {
		return nil, false
	}
	for k := range current {
		if current[k] != recorded[k] {
			return nil, false
		}
	}

	for _, f := range files {
		st, err := osStat(f)
		if err != nil {
			continue
		}
		if st.ModTime().After(m.IndexedAt) {
			return nil, false
		}
	}

	idx, _, err := persist.Load(i.cacheDir, i.packagePath, i.packagePath)
	if err != nil {
		return nil, false
	}
	return idx, true
}

func osStat(path string) (os.FileInfo, error) { return os.Stat(path) }

// toRelative strips packageRoot from absolutePath, the same way a stored
// document key is derived, so a path enumerated freshly from the adapter
// can be compared against the manifest's recorded relative paths.
func toRelative(absolutePath, packageRoot string) string {
	rel := absolutePath
	if len(absolutePath) > len(packageRoot) && absolutePath[:len(packageRoot)] == packageRoot {
		rel = absolutePath[len(packageRoot):]
		for len(rel) > 0 && (rel[0] == '/' || rel[0] == '\\') {
			rel = rel[1:]
		}
	}
	return rel
}

// RefreshFile re-resolves one file: deindexing it if the adapter now
// reports it absent, updating it otherwise. Steps follow spec.md §4.4
// exactly.
func (i *Indexer) RefreshFile(ctx context.Context, absolutePath string) error {
	i.opMu.Lock()
	defer i.opMu.Unlock()

	i.mu.RLock()
	state := i.state
	idx := i.idx
	pkg := i.packagePath
	i.mu.RUnlock()

	if state == StateDisposed {
		return &index.IndexerDisposedError{PackagePath: pkg}
	}
	if state != StateLoaded {
		return fmt.Errorf("refreshFile called while indexer is %s", state)
	}

	rec, err := i.adapter.ResolveUnit(ctx, absolutePath)
	if i.State() == StateDisposed {
		// Dispose ran while the adapter was resolving: discard the result.
		return &index.IndexerDisposedError{PackagePath: pkg}
	}
	if err != nil {
		i.emitError(err, absolutePath)
		return nil // AnalyzerFailure is transient; prior facts are retained
	}

	relPath, known := relativeOf(idx, absolutePath, pkg)

	if rec == nil {
		if known {
			idx.RemoveDocument(relPath)
			i.broadcaster.Publish(Event{Kind: EventFileRemoved, Path: relPath})
			i.markDirty()
		}
		return nil
	}

	if err := idx.UpdateDocument(rec.RelativePath, *rec); err != nil {
		i.emitError(err, rec.RelativePath)
		return nil
	}
	sym, _ := idx.Document(rec.RelativePath)
	i.broadcaster.Publish(Event{Kind: EventFileUpdated, Path: rec.RelativePath, SymbolCount: len(sym.Symbols)})
	i.markDirty()
	return nil
}

func relativeOf(idx *index.Index, absolutePath, packageRoot string) (string, bool) {
	rel := toRelative(absolutePath, packageRoot)
	_, ok := idx.Document(rel)
	return rel, ok
}

// RefreshAll re-resolves every file the adapter currently enumerates.
func (i *Indexer) RefreshAll(ctx context.Context) error {
	files, err := i.adapter.ListSourceFiles(ctx)
	if err != nil {
		return fmt.Errorf("list source files: %w", err)
	}
	for _, f := range files {
		if err := i.RefreshFile(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// GetSignature returns SymbolInfo.SignatureHint for id, falling back to
// empty when absent. This backs the `sig` query verb (SPEC_FULL §4).
func (i *Indexer) GetSignature(id index.SymbolId) (string, bool) {
	i.mu.RLock()
	idx := i.idx
	i.mu.RUnlock()
	if idx == nil {
		return "", false
	}
	s, ok := idx.GetSymbol(id)
	if !ok {
		return "", false
	}
	return s.SignatureHint, true
}

func (i *Indexer) markDirty() {
	i.mu.Lock()
	i.dirty = true
	if i.saveTimer != nil {
		i.saveTimer.Stop()
	}
	i.saveTimer = time.AfterFunc(i.debounce, i.persistNow)
	i.mu.Unlock()
}

// persistNow performs the debounced save. Failures retain the dirty flag
// so the next debounce retries (spec.md §7 PersistenceFailure policy).
func (i *Indexer) persistNow() {
	i.mu.Lock()
	idx := i.idx
	dirty := i.dirty
	i.mu.Unlock()
	if idx == nil || !dirty {
		return
	}

	lock, err := persist.AcquireDirLock(i.cacheDir)
	if err != nil {
		i.emitError(fmt.Errorf("acquire cache lock: %w", err), "")
		return // dirty flag stays set; next debounce retries
	}
	defer lock.Release()

	if err := persist.Save(idx, i.cacheDir, persist.TypeProject, i.packagePath, ""); err != nil {
		i.emitError(err, "")
		return // dirty flag stays set; next debounce retries
	}

	i.mu.Lock()
	i.dirty = false
	i.mu.Unlock()
}

func (i *Indexer) emitError(err error, path string) {
	logging.Warn("%s: %s", i.packagePath, err)
	i.broadcaster.Publish(Event{Kind: EventIndexError, Message: err.Error(), Path: path})
}

// Dispose terminates the indexer. Idempotent. It does not wait for a
// refresh in progress: an in-flight ResolveUnit call may complete, but a
// result that arrives after Dispose is discarded and that RefreshFile
// returns an IndexerDisposedError.
func (i *Indexer) Dispose() error {
	i.mu.Lock()
	if i.state == StateDisposed {
		i.mu.Unlock()
		return nil
	}
	i.state = StateDisposed
	if i.saveTimer != nil {
		i.saveTimer.Stop()
	}
	i.mu.Unlock()

	i.broadcaster.Close()
	return i.adapter.Dispose()
}
