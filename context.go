package dartcontext

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/aemelyanovff/dart-context/internal/analyzer"
	"github.com/aemelyanovff/dart-context/internal/config"
	"github.com/aemelyanovff/dart-context/internal/indexer"
	"github.com/aemelyanovff/dart-context/internal/query"
	"github.com/aemelyanovff/dart-context/internal/registry"
	"github.com/aemelyanovff/dart-context/internal/workspace"
)

// Context is the top-level handle a caller opens once per project. It owns
// the workspace's per-package indexers, the cross-package federation
// registry, and (when watching) the filesystem watcher that keeps both
// current.
type Context struct {
	mu sync.Mutex

	projectRoot string
	primary     workspace.Package
	cfg         config.Config

	ws  *workspace.Registry
	reg *registry.Registry
	ex  *query.Executor

	watcher *workspace.Watcher

	broadcaster *indexer.Broadcaster
	pumpCancels []func()

	disposed bool
}

// options collects Open's configurable behavior, mirroring spec.md §6's
// open(projectPath, watch, useCache, loadDependencies) surface.
type options struct {
	watch            bool
	useCache         bool
	loadDependencies bool
	env              config.Config
	flags            config.Config
}

// Option configures Open.
type Option func(*options)

// WithWatch starts (or skips) the filesystem watcher. Default false.
func WithWatch(watch bool) Option {
	return func(o *options) { o.watch = watch }
}

// WithCache controls whether Open attempts to load a persisted index
// before falling back to a full re-index. Default true.
func WithCache(useCache bool) Option {
	return func(o *options) { o.useCache = useCache }
}

// WithLoadDependencies eagerly loads every dependency resolvable from
// pubspec.lock at open time, instead of requiring a later
// Context.LoadDependencies call. Default false — dependency loading is
// lazy per spec.md §6.
func WithLoadDependencies(load bool) Option {
	return func(o *options) { o.loadDependencies = load }
}

// WithConfigOverrides layers env- and flag-sourced overrides on top of
// whatever dart-context.yaml and the built-in defaults resolve to, per
// internal/config's flag > env > file > default precedence.
func WithConfigOverrides(env, flags config.Config) Option {
	return func(o *options) { o.env, o.flags = env, flags }
}

// Open detects projectPath's workspace shape, opens one indexer per member
// package, federates them behind a Registry, and optionally starts the
// watcher and loads dependencies.
func Open(ctx context.Context, projectPath string, opts ...Option) (*Context, error) {
	absRoot, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("dartcontext: resolve project path: %w", err)
	}

	o := options{useCache: true}
	for _, fn := range opts {
		fn(&o)
	}

	cfg, err := config.Load(absRoot, o.env, o.flags)
	if err != nil {
		return nil, fmt.Errorf("dartcontext: load config: %w", err)
	}

	newAdapter := func(pkg workspace.Package) analyzer.Adapter {
		return analyzer.NewDartAdapter(pkg.Name, pkg.AbsolutePath)
	}

	ws, err := workspace.Open(ctx, absRoot, cfg.WorkspaceCacheDir, o.useCache, newAdapter)
	if err != nil {
		return nil, fmt.Errorf("dartcontext: open workspace: %w", err)
	}

	primary, ok := ws.Workspace.FindPackageForPath(absRoot)
	if !ok && len(ws.Workspace.Packages) > 0 {
		primary = ws.Workspace.Packages[0]
		ok = true
	}
	if !ok {
		return nil, fmt.Errorf("dartcontext: no package found at or above %s", absRoot)
	}

	primaryIndexer, ok := ws.Indexer(primary.Name)
	if !ok {
		return nil, fmt.Errorf("dartcontext: no indexer opened for package %s", primary.Name)
	}

	reg := registry.New(primaryIndexer.Index(), cfg.GlobalCacheDir, filepath.Join(ws.Workspace.Root, cfg.WorkspaceCacheDir))
	for _, pkg := range ws.Workspace.Packages {
		if pkg.Name == primary.Name {
			continue
		}
		reg.LoadLocalPackage(pkg.Name)
	}

	dc := &Context{
		projectRoot: absRoot,
		primary:     primary,
		cfg:         cfg,
		ws:          ws,
		reg:         reg,
		ex:          query.NewExecutor(reg),
		broadcaster: indexer.NewBroadcaster(),
	}
	dc.attachEventPumps()

	if o.loadDependencies {
		if _, err := reg.LoadFromPackageConfig(primary.AbsolutePath); err != nil {
			// Errors at dependency-load time scope to the dependency layer
			// (spec.md §7); a missing/unreadable pubspec.lock is not fatal
			// to opening the project.
			dc.emitError(err, primary.AbsolutePath)
		}
	}

	if o.watch {
		w, err := workspace.NewWatcher(ws, reg, cfg.WatchDebounce)
		if err != nil {
			dc.Dispose()
			return nil, fmt.Errorf("dartcontext: create watcher: %w", err)
		}
		w.OnError = func(err error) { dc.emitError(err, "") }
		if err := w.Start(); err != nil {
			dc.Dispose()
			return nil, fmt.Errorf("dartcontext: start watcher: %w", err)
		}
		dc.watcher = w
	}

	return dc, nil
}

// attachEventPumps subscribes to every currently-open package indexer and
// republishes its events on the Context's single aggregated stream, so
// Updates() callers don't need to know the workspace's package layout.
func (c *Context) attachEventPumps() {
	for _, pkg := range c.ws.Workspace.Packages {
		ix, ok := c.ws.Indexer(pkg.Name)
		if !ok {
			continue
		}
		ch, cancel := ix.Events()
		c.pumpCancels = append(c.pumpCancels, cancel)
		go func() {
			for ev := range ch {
				c.broadcaster.Publish(ev)
			}
		}()
	}
}

func (c *Context) emitError(err error, path string) {
	c.broadcaster.Publish(indexer.Event{Kind: indexer.EventIndexError, Message: err.Error(), Path: path})
}

// Query parses and executes text against the federated registry. Parser
// errors and mid-pipeline failures surface as an ErrorResult rather than a
// Go error — see internal/query's Result tagged union.
func (c *Context) Query(text string) QueryResult {
	return c.ex.Run(text)
}

// Updates returns a channel of aggregated IndexUpdate events across every
// workspace package, plus a cancel function that releases it. Safe to
// call multiple times; each caller gets an independent subscription.
func (c *Context) Updates() (<-chan Event, func()) {
	return c.broadcaster.Subscribe()
}

// RefreshFile re-resolves one file, routing it to the workspace package
// that owns it.
func (c *Context) RefreshFile(ctx context.Context, absolutePath string) error {
	return c.ws.UpdateFile(ctx, absolutePath)
}

// RefreshAll re-resolves every file in every workspace package.
func (c *Context) RefreshAll(ctx context.Context) error {
	return c.ws.RefreshAll(ctx)
}

// LoadDependencies loads every dependency resolvable from the primary
// package's pubspec.lock, per spec.md §6's lazy-enablement requirement —
// callers that didn't pass WithLoadDependencies(true) to Open call this
// once they actually need cross-package definitions to resolve into the
// SDK, framework, or pub.dev packages.
func (c *Context) LoadDependencies(ctx context.Context) (DependencyLoadResult, error) {
	return c.reg.LoadFromPackageConfig(c.primary.AbsolutePath)
}

// Dispose stops the watcher (if running), disposes every package indexer,
// and closes the aggregated event stream. Idempotent.
func (c *Context) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	var firstErr error
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, cancel := range c.pumpCancels {
		cancel()
	}
	if err := c.ws.Dispose(); err != nil && firstErr == nil {
		firstErr = err
	}
	c.broadcaster.Close()
	return firstErr
}

// ProjectRoot returns the absolute path Open was called with.
func (c *Context) ProjectRoot() string { return c.projectRoot }

// Registry exposes the underlying federation registry for callers that
// need direct access beyond the Query surface.
func (c *Context) Registry() *registry.Registry { return c.reg }
