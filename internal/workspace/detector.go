// Package workspace implements WorkspaceDetector and WorkspaceRegistry:
// identifying whether a directory is a single package, a declarative or
// tool-driven multi-package workspace, and coordinating one
// indexer.Indexer per member package (spec.md §4.6-§4.7).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"gopkg.in/yaml.v3"
)

// Shape is the kind of workspace a directory resolves to.
type Shape string

const (
	ShapeSingle      Shape = "single"
	ShapeDeclarative Shape = "declarative" // pubspec.yaml `workspace:` field
	ShapeToolDriven  Shape = "tool-driven" // melos.yaml packages/ignore globs
)

// Package is one member of a detected workspace.
type Package struct {
	Name         string
	RelativePath string
	AbsolutePath string
}

// Workspace is the result of detection.
type Workspace struct {
	Shape    Shape
	Root     string
	Packages []Package
}

type pubspec struct {
	Name      string   `yaml:"name"`
	Workspace []string `yaml:"workspace"`
}

type melosConfig struct {
	Name     string   `yaml:"name"`
	Packages []string `yaml:"packages"`
	Ignore   []string `yaml:"ignore"`
}

// Detect walks ancestors of startPath looking for a workspace marker,
// per spec.md §4.6's three recognized shapes.
func Detect(startPath string) (*Workspace, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return nil, err
	}

	dir := abs
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		if ws, err := detectAt(dir); err != nil {
			return nil, err
		} else if ws != nil {
			return ws, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, fmt.Errorf("no pubspec.yaml found above %s", abs)
}

func detectAt(dir string) (*Workspace, error) {
	pubspecPath := filepath.Join(dir, "pubspec.yaml")
	melosPath := filepath.Join(dir, "melos.yaml")

	hasMelos := fileExists(melosPath)
	hasPubspec := fileExists(pubspecPath)

	if hasMelos {
		var cfg melosConfig
		if err := readYAML(melosPath, &cfg); err != nil {
			return nil, fmt.Errorf("parse melos.yaml: %w", err)
		}
		pkgs, err := expandGlobs(dir, cfg.Packages, cfg.Ignore)
		if err != nil {
			return nil, err
		}
		return &Workspace{Shape: ShapeToolDriven, Root: dir, Packages: pkgs}, nil
	}

	if hasPubspec {
		var ps pubspec
		if err := readYAML(pubspecPath, &ps); err != nil {
			return nil, fmt.Errorf("parse pubspec.yaml: %w", err)
		}
		if len(ps.Workspace) > 0 {
			pkgs, err := expandGlobs(dir, ps.Workspace, nil)
			if err != nil {
				return nil, err
			}
			return &Workspace{Shape: ShapeDeclarative, Root: dir, Packages: pkgs}, nil
		}
		name := ps.Name
		if name == "" {
			name = filepath.Base(dir)
		}
		return &Workspace{Shape: ShapeSingle, Root: dir, Packages: []Package{{Name: name, RelativePath: ".", AbsolutePath: dir}}}, nil
	}

	return nil, nil
}

// expandGlobs expands include globs relative to root, drops any match
// covered by an ignore glob (ignore takes precedence), validates each
// surviving match has a pubspec.yaml, and sorts by relative path for
// determinism (spec.md §4.6).
func expandGlobs(root string, includeGlobs, ignoreGlobs []string) ([]Package, error) {
	gi := loadGitignore(root)

	matched := make(map[string]struct{})
	for _, g := range includeGlobs {
		hits, err := filepath.Glob(filepath.Join(root, g))
		if err != nil {
			return nil, fmt.Errorf("expand glob %q: %w", g, err)
		}
		for _, h := range hits {
			info, err := os.Stat(h)
			if err == nil && info.IsDir() {
				matched[h] = struct{}{}
			}
		}
	}

	var ignored []string
	for _, g := range ignoreGlobs {
		hits, _ := filepath.Glob(filepath.Join(root, g))
		ignored = append(ignored, hits...)
	}
	ignoreSet := make(map[string]struct{}, len(ignored))
	for _, p := range ignored {
		ignoreSet[p] = struct{}{}
	}

	var out []Package
	for abs := range matched {
		if _, skip := ignoreSet[abs]; skip {
			continue
		}
		if gi != nil {
			if rel, err := filepath.Rel(root, abs); err == nil && gi.MatchesPath(rel) {
				continue
			}
		}
		manifest := filepath.Join(abs, "pubspec.yaml")
		if !fileExists(manifest) {
			continue
		}
		var ps pubspec
		if err := readYAML(manifest, &ps); err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			rel = abs
		}
		name := ps.Name
		if name == "" {
			name = filepath.Base(abs)
		}
		out = append(out, Package{Name: name, RelativePath: rel, AbsolutePath: abs})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out, nil
}

// FindPackageForPath returns the package whose AbsolutePath is the
// longest prefix of path — the innermost match wins when packages nest.
func (w *Workspace) FindPackageForPath(path string) (Package, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	var best Package
	bestLen := -1
	for _, pkg := range w.Packages {
		prefix := pkg.AbsolutePath
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if abs == pkg.AbsolutePath || strings.HasPrefix(abs+string(filepath.Separator), prefix) {
			if len(pkg.AbsolutePath) > bestLen {
				best = pkg
				bestLen = len(pkg.AbsolutePath)
			}
		}
	}
	return best, bestLen >= 0
}

// loadGitignore reads root's top-level .gitignore, if any, grounded on
// discover.Files's fallback path for repos that lack a .git directory
// to ask `git ls-files` instead. Returns nil when no .gitignore exists.
func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if !fileExists(path) {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}
