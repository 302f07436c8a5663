package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aemelyanovff/dart-context/internal/analyzer"
	"github.com/aemelyanovff/dart-context/internal/indexer"
)

// manifestDoc mirrors workspace.json's schema (spec.md §6).
type manifestDoc struct {
	Type      Shape          `json:"type"`
	RootPath  string         `json:"rootPath"`
	Packages  []manifestPkg  `json:"packages"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type manifestPkg struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath"`
}

// Registry opens one indexer.Indexer per workspace package and mirrors
// each package's persisted artifact into
// <root>/<cacheDirName>/local/<pkg>/{index,manifest.json}.
type Registry struct {
	mu sync.RWMutex

	Workspace   *Workspace
	CacheDirName string

	indexers map[string]*indexer.Indexer // keyed by package name
}

// Open detects the workspace at startPath, opens an Indexer per member
// package (useCache honored per indexer), and writes workspace.json.
func Open(ctx context.Context, startPath, cacheDirName string, useCache bool, newAdapter func(pkg Package) analyzer.Adapter) (*Registry, error) {
	ws, err := Detect(startPath)
	if err != nil {
		return nil, err
	}

	r := &Registry{Workspace: ws, CacheDirName: cacheDirName, indexers: make(map[string]*indexer.Indexer)}

	for _, pkg := range ws.Packages {
		adapter := newAdapter(pkg)
		cacheDir := filepath.Join(pkg.AbsolutePath, cacheDirName)
		ix := indexer.New(pkg.AbsolutePath, cacheDir, adapter)
		if err := ix.Open(ctx, useCache); err != nil {
			return nil, fmt.Errorf("open indexer for %s: %w", pkg.Name, err)
		}
		r.indexers[pkg.Name] = ix
		if err := r.mirror(pkg.Name); err != nil {
			return nil, err
		}
	}

	if err := r.writeWorkspaceManifest(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) centralDir() string {
	return filepath.Join(r.Workspace.Root, r.CacheDirName)
}

func (r *Registry) localMirrorDir(pkgName string) string {
	return filepath.Join(r.centralDir(), "local", pkgName)
}

// Indexer returns the Indexer owning pkgName, if any.
func (r *Registry) Indexer(pkgName string) (*indexer.Indexer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.indexers[pkgName]
	return ix, ok
}

// UpdateFile locates the owning package via FindPackageForPath, refreshes
// its indexer, and re-mirrors that package's artifact (spec.md §4.7).
func (r *Registry) UpdateFile(ctx context.Context, absolutePath string) error {
	pkg, ok := r.Workspace.FindPackageForPath(absolutePath)
	if !ok {
		return fmt.Errorf("no workspace package owns %s", absolutePath)
	}
	ix, ok := r.Indexer(pkg.Name)
	if !ok {
		return fmt.Errorf("no indexer for package %s", pkg.Name)
	}
	if err := ix.RefreshFile(ctx, absolutePath); err != nil {
		return err
	}
	return r.mirror(pkg.Name)
}

// RefreshAll re-resolves every file in every workspace package, in
// package-name order for determinism, mirroring each afterward.
func (r *Registry) RefreshAll(ctx context.Context) error {
	r.mu.RLock()
	names := make([]string, 0, len(r.indexers))
	for name := range r.indexers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		ix, ok := r.Indexer(name)
		if !ok {
			continue
		}
		if err := ix.RefreshAll(ctx); err != nil {
			return fmt.Errorf("refresh package %s: %w", name, err)
		}
		if err := r.mirror(name); err != nil {
			return err
		}
	}
	return nil
}

// mirror copies the package's persisted index and manifest.json into the
// central workspace registry directory by file copy, per spec.md §4.7.
func (r *Registry) mirror(pkgName string) error {
	pkg := r.packageByName(pkgName)
	if pkg == nil {
		return fmt.Errorf("unknown package %s", pkgName)
	}
	src := filepath.Join(pkg.AbsolutePath, r.CacheDirName)
	dst := r.localMirrorDir(pkgName)
	for _, name := range []string{"index", "manifest.json"} {
		from := filepath.Join(src, name)
		if _, err := os.Stat(from); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(from, filepath.Join(dst, name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) packageByName(name string) *Package {
	for i := range r.Workspace.Packages {
		if r.Workspace.Packages[i].Name == name {
			return &r.Workspace.Packages[i]
		}
	}
	return nil
}

func (r *Registry) writeWorkspaceManifest() error {
	doc := manifestDoc{Type: r.Workspace.Shape, RootPath: r.Workspace.Root, UpdatedAt: time.Now()}
	for _, pkg := range r.Workspace.Packages {
		doc.Packages = append(doc.Packages, manifestPkg{Name: pkg.Name, RelativePath: pkg.RelativePath})
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.centralDir(), 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(r.centralDir(), "workspace.json.tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(r.centralDir(), "workspace.json"))
}

// Dispose disposes every owned indexer.
func (r *Registry) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, ix := range r.indexers {
		if err := ix.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func copyTree(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if d.Name() == ".lock" {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	out.Close()
	return os.Rename(tmp, dst)
}
