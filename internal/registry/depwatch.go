package registry

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DependencySnapshot diffs successive reads of pubspec.lock so the
// workspace watcher can react only to added dependencies (spec.md §4.7)
// and, per SPEC_FULL §4, to version changes on an already-loaded
// dependency — reloading it under its new cache key.
type DependencySnapshot struct {
	versions map[string]string // package name -> resolved version/commit key
}

// NewDependencySnapshot reads projectPath/pubspec.lock into a baseline.
func NewDependencySnapshot(projectPath string) (*DependencySnapshot, error) {
	s := &DependencySnapshot{versions: map[string]string{}}
	if err := s.capture(projectPath); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DependencySnapshot) capture(projectPath string) error {
	b, err := os.ReadFile(filepath.Join(projectPath, "pubspec.lock"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var lock pubspecLock
	if err := yaml.Unmarshal(b, &lock); err != nil {
		return err
	}
	versions := make(map[string]string, len(lock.Packages))
	for name, pkg := range lock.Packages {
		versions[name] = pkg.Version
	}
	s.versions = versions
	return nil
}

// DiffResult names the dependencies that changed since the last capture.
type DiffResult struct {
	Added   []string // newly present in the lock file
	Changed []string // same name, different resolved version
}

// ReloadOnChange re-reads pubspec.lock, diffs it against the snapshot,
// loads every added dependency via r.LoadFromPackageConfig-equivalent
// per-package loaders, and reloads any dependency whose resolved version
// changed (unloading the stale cache key first). Removed dependencies
// are deliberately left loaded — memory vs churn trade-off, spec.md §4.7.
func (r *Registry) ReloadOnChange(projectPath string, snap *DependencySnapshot) (DiffResult, error) {
	prev := snap.versions

	b, err := os.ReadFile(filepath.Join(projectPath, "pubspec.lock"))
	if err != nil {
		return DiffResult{}, err
	}
	var lock pubspecLock
	if err := yaml.Unmarshal(b, &lock); err != nil {
		return DiffResult{}, err
	}

	var diff DiffResult
	for name, pkg := range lock.Packages {
		oldVersion, known := prev[name]
		prov, key := pkg.resolvedKey(name)

		switch {
		case !known:
			diff.Added = append(diff.Added, name)
			loadByProvenance(r, prov, name, pkg.Version, key)
		case oldVersion != pkg.Version:
			diff.Changed = append(diff.Changed, name)
			oldKey := name + "-" + oldVersion
			r.Unload(prov, oldKey)
			loadByProvenance(r, prov, name, pkg.Version, key)
		}
	}

	_ = snap.capture(projectPath)
	return diff, nil
}

func loadByProvenance(r *Registry, prov Provenance, name, version, key string) {
	switch prov {
	case ProvenanceHosted:
		r.LoadPackage(name, version)
	case ProvenanceGit:
		r.LoadGitPackage(key)
	case ProvenanceLocal:
		r.LoadLocalPackage(name)
	case ProvenanceFramework:
		r.LoadFrameworkPackage(version, name)
	}
}
