package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/aemelyanovff/dart-context/internal/analyzer"
	"github.com/aemelyanovff/dart-context/internal/logging"
	"github.com/aemelyanovff/dart-context/internal/registry"
)

var ignoredDirNames = map[string]bool{
	".git": true, ".dart_tool": true, "build": true, ".symlinks": true, ".idea": true,
}

var generatedSuffixes = []string{".g.dart", ".freezed.dart", ".gr.dart", ".mocks.dart"}

func isIgnoredWatchPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
		if ignoredDirNames[part] {
			return true
		}
	}
	for _, suf := range generatedSuffixes {
		if strings.HasSuffix(path, suf) {
			return true
		}
	}
	return false
}

// StructuralChangeFunc is invoked when a pubspec.yaml or melos.yaml anywhere
// in the watched tree changes. Per spec.md §4.7, the watcher deliberately takes no automatic
// re-discovery action — it only signals; callers restart the context to
// pick up structural changes.
type StructuralChangeFunc func(path string)

// DependencyManifestFunc is invoked after a dependency-resolution manifest
// (pubspec.lock) change has been diffed against its prior snapshot, so the
// caller can log or surface what was added/changed; the actual reload into
// depRegistry (when one is attached) has already happened by the time this
// fires.
type DependencyManifestFunc func(path string, diff registry.DiffResult)

// Watcher subscribes to one recursive filesystem watch rooted at the
// workspace root and fans source-file events out to the owning package's
// indexer via Registry.UpdateFile.
type Watcher struct {
	registry *Registry
	fsw      *fsnotify.Watcher
	debounce time.Duration

	// depRegistry, when set, receives ReloadOnChange calls on every
	// pubspec.lock change (SPEC_FULL §4's supplemented version-change
	// detection, on top of spec.md §4.7's added-dependency baseline).
	depRegistry *registry.Registry

	// gitignore holds the workspace root's compiled .gitignore, if any, so
	// addRecursive/handleEvent can skip ignored paths beyond the hardcoded
	// ignoredDirNames set, grounded on discover.Files's gitignore handling.
	gitignore *ignore.GitIgnore

	OnError      func(error)
	OnStructural StructuralChangeFunc
	OnDependency DependencyManifestFunc

	mu        sync.Mutex
	pending   map[string]time.Time
	snapshots map[string]*registry.DependencySnapshot // keyed by project dir

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a Watcher for reg's workspace root. depRegistry may be
// nil, in which case pubspec.lock changes are reported via OnDependency
// with a zero DiffResult but never loaded anywhere.
func NewWatcher(reg *Registry, depRegistry *registry.Registry, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		registry:    reg,
		depRegistry: depRegistry,
		gitignore:   loadGitignore(reg.Workspace.Root),
		fsw:         fsw,
		debounce:    debounce,
		pending:     make(map[string]time.Time),
		snapshots:   make(map[string]*registry.DependencySnapshot),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// isGitignored reports whether path (absolute or relative to the workspace
// root) matches the workspace's .gitignore. Returns false when there is no
// .gitignore or path falls outside the workspace root.
func (w *Watcher) isGitignored(path string) bool {
	if w.gitignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.registry.Workspace.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return w.gitignore.MatchesPath(rel)
}

// Start adds the workspace root recursively and begins processing events.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.registry.Workspace.Root); err != nil {
		return err
	}
	go w.processEvents()
	go w.processPending()
	return nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if w.OnError != nil {
				w.OnError(err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (isIgnoredWatchPath(path) || w.isGitignored(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil && w.OnError != nil {
			w.OnError(err) // spec.md §7 WatcherFailure: log, keep watching other subtrees
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if isIgnoredWatchPath(ev.Name) || w.isGitignored(ev.Name) {
		return
	}

	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addRecursive(ev.Name)
			return
		}
	}

	base := filepath.Base(ev.Name)
	switch base {
	case "pubspec.lock":
		w.handleDependencyChange(ev.Name)
		return
	case "pubspec.yaml", "melos.yaml":
		if w.OnStructural != nil {
			w.OnStructural(ev.Name)
		}
		return
	}

	if !strings.HasSuffix(ev.Name, ".dart") {
		return
	}

	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// handleDependencyChange diffs the changed pubspec.lock against its prior
// snapshot (capturing a fresh baseline on first sight), reloads added or
// version-changed dependencies through depRegistry when one is attached,
// and reports the result via OnDependency.
func (w *Watcher) handleDependencyChange(lockPath string) {
	projectDir := filepath.Dir(lockPath)

	if w.depRegistry == nil {
		if w.OnDependency != nil {
			w.OnDependency(lockPath, registry.DiffResult{})
		}
		return
	}

	w.mu.Lock()
	snap, ok := w.snapshots[projectDir]
	w.mu.Unlock()
	if !ok {
		newSnap, err := registry.NewDependencySnapshot(projectDir)
		if err != nil {
			if w.OnError != nil {
				w.OnError(err)
			}
			return
		}
		w.mu.Lock()
		w.snapshots[projectDir] = newSnap
		w.mu.Unlock()
		return // first sight establishes the baseline; nothing to diff yet
	}

	diff, err := w.depRegistry.ReloadOnChange(projectDir, snap)
	if err != nil {
		if w.OnError != nil {
			w.OnError(err)
		}
		return
	}
	if len(diff.Added) > 0 || len(diff.Changed) > 0 {
		logging.Info("pubspec.lock changed: +%v ~%v", diff.Added, diff.Changed)
	}
	if w.OnDependency != nil {
		w.OnDependency(lockPath, diff)
	}
}

func (w *Watcher) processPending() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			w.mu.Lock()
			var ready []string
			for path, t := range w.pending {
				if now.Sub(t) >= w.debounce {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range ready {
				if err := w.registry.UpdateFile(w.ctx, path); err != nil && w.OnError != nil {
					w.OnError(err)
				}
				w.emitToAdapter(path)
			}
		}
	}
}

// emitToAdapter forwards a detected source-file change into the owning
// package's adapter when it implements analyzer.Emitter, so the adapter's
// own FileChanges stream (spec.md §4.3) observes the same events this
// watcher already used to drive UpdateFile, rather than going unfed.
func (w *Watcher) emitToAdapter(absolutePath string) {
	pkg, ok := w.registry.Workspace.FindPackageForPath(absolutePath)
	if !ok {
		return
	}
	ix, ok := w.registry.Indexer(pkg.Name)
	if !ok {
		return
	}
	emitter, ok := ix.Adapter().(analyzer.Emitter)
	if !ok {
		return
	}
	changeType := analyzer.ChangeModified
	if _, err := os.Stat(absolutePath); os.IsNotExist(err) {
		changeType = analyzer.ChangeDeleted
	}
	emitter.Emit(analyzer.FileChange{Path: absolutePath, Type: changeType})
}

// Close stops the watcher. Idempotent.
func (w *Watcher) Close() error {
	w.cancel()
	return w.fsw.Close()
}
