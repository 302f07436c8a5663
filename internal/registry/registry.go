// Package registry implements IndexRegistry: the federation layer that
// routes queries across the project index plus zero or more externally
// loaded indexes, in the fixed precedence order spec.md §4.5 specifies:
// project -> local -> sdk -> framework -> hosted -> git.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aemelyanovff/dart-context/internal/index"
	"github.com/aemelyanovff/dart-context/internal/persist"
)

// Provenance names where a loaded (non-project) index came from.
type Provenance string

const (
	ProvenanceLocal     Provenance = "local"
	ProvenanceSDK       Provenance = "sdk"
	ProvenanceFramework Provenance = "framework"
	ProvenanceHosted    Provenance = "hosted"
	ProvenanceGit       Provenance = "git"
)

// precedence is the fixed federation order, project first.
var precedence = []Provenance{ProvenanceLocal, ProvenanceSDK, ProvenanceFramework, ProvenanceHosted, ProvenanceGit}

// DiscoveredPackage names a package found by workspace discovery, not yet
// necessarily loaded into the registry.
type DiscoveredPackage struct {
	Name         string
	AbsolutePath string
	Version      string
}

// ResolvedDependency names a dependency resolved by the package manager's
// lock file, with the provenance-appropriate cache key used to locate its
// artifact on disk.
type ResolvedDependency struct {
	Name     string
	CacheKey string
	Source   Provenance
	Version  string
}

// Slot is a loaded SymbolIndex tagged by its provenance and cache key.
type Slot struct {
	Provenance Provenance
	CacheKey   string
	Name       string
	Version    string
	Index      *index.Index
}

// Registry borrows the project index (never owns it) and exclusively owns
// every external index it loads.
type Registry struct {
	mu sync.RWMutex

	project *index.Index

	// GlobalCacheDir / WorkspaceCacheDir root the provenance-specific
	// subtrees described in spec.md §6; dependency-injected so tests never
	// touch a real $HOME.
	GlobalCacheDir    string
	WorkspaceCacheDir string

	slots map[Provenance]map[string]*Slot // provenance -> cacheKey -> slot
}

// New creates a Registry federating queries in front of project.
func New(project *index.Index, globalCacheDir, workspaceCacheDir string) *Registry {
	return &Registry{
		project:           project,
		GlobalCacheDir:    globalCacheDir,
		WorkspaceCacheDir: workspaceCacheDir,
		slots:             make(map[Provenance]map[string]*Slot),
	}
}

// orderedIndexes returns every loaded index in federation precedence
// order: project, then local, sdk, framework, hosted, git, each provenance
// group itself ordered by cache key for determinism.
func (r *Registry) orderedIndexes() []*index.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*index.Index{r.project}
	for _, prov := range precedence {
		group := r.slots[prov]
		keys := make([]string, 0, len(group))
		for k := range group {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, group[k].Index)
		}
	}
	return out
}

// indexedSlot is one entry of orderedSlots, which is like orderedIndexes
// but also returns the provenance + cacheKey for each (used by grep's sourceRoot dedup and by
// FindAllReferencesByName's per-hit annotation).
type indexedSlot struct {
	prov  Provenance
	key   string
	name  string
	index *index.Index
}

func (r *Registry) orderedSlots() []indexedSlot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []indexedSlot{{prov: "project", key: "", name: "project", index: r.project}}
	for _, prov := range precedence {
		group := r.slots[prov]
		keys := make([]string, 0, len(group))
		for k := range group {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, indexedSlot{prov: prov, key: k, name: group[k].Name, index: group[k].Index})
		}
	}
	return out
}

// GetSymbol returns the first hit across indexes in precedence order.
func (r *Registry) GetSymbol(id index.SymbolId) (index.SymbolInfo, bool) {
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		if s, ok := idx.GetSymbol(id); ok {
			return s, true
		}
	}
	return index.SymbolInfo{}, false
}

// FindDefinition returns the first hit across indexes in precedence
// order; subsequent indexes are never consulted once one hits (testable
// property 4).
func (r *Registry) FindDefinition(id index.SymbolId) (occ index.OccurrenceInfo, owner *index.Index, ok bool) {
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		if o, found := idx.FindDefinition(id); found {
			return o, idx, true
		}
	}
	return index.OccurrenceInfo{}, nil, false
}

// FindReferences returns every occurrence of id within a single index: the
// first index in precedence order that reports any occurrence of id,
// whether or not that index defines it. Occurrences in later indexes are
// not included.
func (r *Registry) FindReferences(id index.SymbolId) []index.OccurrenceInfo {
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		if refs := idx.FindReferences(id); len(refs) > 0 {
			return refs
		}
	}
	return nil
}

// FindSymbols concatenates results from every index, de-duplicated by
// SymbolId, keeping the first occurrence's index (testable property 5).
func (r *Registry) FindSymbols(pattern string) []index.SymbolInfo {
	seen := make(map[index.SymbolId]struct{})
	var out []index.SymbolInfo
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		for _, s := range idx.FindSymbols(pattern) {
			if _, dup := seen[s.Symbol]; dup {
				continue
			}
			seen[s.Symbol] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// FindQualified mirrors FindSymbols' de-dup law for qualified lookups.
func (r *Registry) FindQualified(container index.SymbolId, member string) []index.SymbolInfo {
	seen := make(map[index.SymbolId]struct{})
	var out []index.SymbolInfo
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		for _, s := range idx.FindQualified(container, member) {
			if _, dup := seen[s.Symbol]; dup {
				continue
			}
			seen[s.Symbol] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// MembersOf returns the first index's non-empty member list; members are
// never merged across indexes since they are closed within the defining
// index.
func (r *Registry) MembersOf(id index.SymbolId) []index.SymbolInfo {
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		if m := idx.MembersOf(id); len(m) > 0 {
			return m
		}
	}
	return nil
}

func (r *Registry) dedupedList(get func(*index.Index) []index.SymbolInfo) []index.SymbolInfo {
	seen := make(map[index.SymbolId]struct{})
	var out []index.SymbolInfo
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		for _, s := range get(idx) {
			if _, dup := seen[s.Symbol]; dup {
				continue
			}
			seen[s.Symbol] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) SupertypesOf(id index.SymbolId) []index.SymbolInfo {
	return r.dedupedList(func(idx *index.Index) []index.SymbolInfo { return idx.SupertypesOf(id) })
}

func (r *Registry) SubtypesOf(id index.SymbolId) []index.SymbolInfo {
	return r.dedupedList(func(idx *index.Index) []index.SymbolInfo { return idx.SubtypesOf(id) })
}

func (r *Registry) GetCalls(id index.SymbolId) []index.SymbolInfo {
	return r.dedupedList(func(idx *index.Index) []index.SymbolInfo { return idx.GetCalls(id) })
}

func (r *Registry) GetCallers(id index.SymbolId) []index.SymbolInfo {
	return r.dedupedList(func(idx *index.Index) []index.SymbolInfo { return idx.GetCallers(id) })
}

// NamedReference is one hit from FindAllReferencesByName, annotated with
// the provenance of the index it was found in.
type NamedReference struct {
	Occurrence  index.OccurrenceInfo
	PackageName string
	SourceRoot  string
}

// FindAllReferencesByName searches every index for symbols named
// pattern, aggregating occurrences from all of them without de-duplicating
// by SymbolId — each index's references are reported, since SymbolIds
// differ per index for the cross-package case this exists to serve.
func (r *Registry) FindAllReferencesByName(pattern string) []NamedReference {
	var out []NamedReference
	for _, slot := range r.orderedSlots() {
		if slot.index == nil {
			continue
		}
		for _, sym := range slot.index.FindSymbols(pattern) {
			for _, occ := range slot.index.FindReferences(sym.Symbol) {
				out = append(out, NamedReference{Occurrence: occ, PackageName: slot.name, SourceRoot: slot.index.SourceRoot})
			}
		}
	}
	return out
}

// GrepOptions extends index.GrepOptions with the registry-level
// includeExternal switch.
type GrepOptions struct {
	index.GrepOptions
	IncludeExternal bool
}

// Grep always scans project + all loaded local indexes; SDK/framework/
// hosted/git are scanned only when IncludeExternal is set. Indexes sharing
// a SourceRoot are scanned once.
func (r *Registry) Grep(opts GrepOptions) ([]index.GrepMatch, error) {
	seenRoots := make(map[string]struct{})
	var out []index.GrepMatch
	for _, slot := range r.orderedSlots() {
		if slot.index == nil {
			continue
		}
		if slot.prov != "project" && slot.prov != ProvenanceLocal && !opts.IncludeExternal {
			continue
		}
		if _, dup := seenRoots[slot.index.SourceRoot]; dup {
			continue
		}
		seenRoots[slot.index.SourceRoot] = struct{}{}

		matches, err := slot.index.Grep(opts.GrepOptions)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// findOwningIndex locates the slot (if any) whose index defines id.
func (r *Registry) findOwningIndex(id index.SymbolId) *index.Index {
	for _, idx := range r.orderedIndexes() {
		if idx == nil {
			continue
		}
		if _, ok := idx.GetSymbol(id); ok {
			return idx
		}
	}
	return nil
}

// Project returns the borrowed project index, for callers (the query
// executor's stats/files verbs) that need the whole-index rollup rather
// than a federated query.
func (r *Registry) Project() *index.Index { return r.project }

// IndexNamed returns the loaded index (project or external) whose slot
// name matches name, for the `in:` filter's package-scoped mode.
func (r *Registry) IndexNamed(name string) (*index.Index, bool) {
	for _, slot := range r.orderedSlots() {
		if slot.name == name && slot.index != nil {
			return slot.index, true
		}
	}
	return nil, false
}

// ResolveFilePath maps a SymbolId back to an absolute filesystem path via
// its owning index's definition occurrence and SourceRoot.
func (r *Registry) ResolveFilePath(id index.SymbolId) (string, bool) {
	owner := r.findOwningIndex(id)
	if owner == nil {
		return "", false
	}
	def, ok := owner.FindDefinition(id)
	if !ok {
		return "", false
	}
	return filepath.Join(owner.SourceRoot, def.File), true
}

// --- loaders -----------------------------------------------------------

func (r *Registry) cacheDirFor(prov Provenance, cacheKey string) string {
	switch prov {
	case ProvenanceSDK:
		return filepath.Join(r.GlobalCacheDir, "sdk", cacheKey)
	case ProvenanceFramework:
		// cacheKey encodes "<version>/<package>"
		return filepath.Join(r.GlobalCacheDir, "framework", cacheKey)
	case ProvenanceHosted:
		return filepath.Join(r.GlobalCacheDir, "hosted", cacheKey)
	case ProvenanceGit:
		return filepath.Join(r.GlobalCacheDir, "git", cacheKey)
	case ProvenanceLocal:
		return filepath.Join(r.WorkspaceCacheDir, "local", cacheKey)
	default:
		return filepath.Join(r.GlobalCacheDir, string(prov), cacheKey)
	}
}

// HasIndex reports whether a provenance/cacheKey artifact exists on disk,
// without loading it.
func (r *Registry) HasIndex(prov Provenance, cacheKey string) bool {
	dir := r.cacheDirFor(prov, cacheKey)
	_, err := persist.ReadManifest(dir)
	return err == nil
}

// load is the shared implementation behind the loadX helpers: mutators
// must be serialized by the caller (spec.md §5). It holds dir's advisory
// DirLock across the read so it never races whichever indexer/registry is
// mid-rebuild of the same cache artifact, beyond the in-memory lock needed
// to publish into r.slots.
func (r *Registry) load(prov Provenance, name, version, cacheKey string) (*index.Index, error) {
	dir := r.cacheDirFor(prov, cacheKey)

	lock, err := persist.AcquireDirLock(dir)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: acquire cache lock: %w", prov, cacheKey, err)
	}
	defer lock.Release()

	idx, m, err := persist.Load(dir, dir, "")
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", prov, cacheKey, err)
	}

	r.mu.Lock()
	if r.slots[prov] == nil {
		r.slots[prov] = make(map[string]*Slot)
	}
	r.slots[prov][cacheKey] = &Slot{Provenance: prov, CacheKey: cacheKey, Name: name, Version: version, Index: idx}
	r.mu.Unlock()

	_ = m
	return idx, nil
}

// LoadSDK loads the Dart SDK index for the given version, if cached.
func (r *Registry) LoadSDK(version string) (*index.Index, bool) {
	if !r.HasIndex(ProvenanceSDK, version) {
		return nil, false
	}
	idx, err := r.load(ProvenanceSDK, "dart-sdk", version, version)
	return idx, err == nil
}

// LoadFrameworkPackage loads a Flutter-framework package (e.g. "flutter",
// "flutter_test") for the given SDK version.
func (r *Registry) LoadFrameworkPackage(version, name string) (*index.Index, bool) {
	key := filepath.Join(version, name)
	if !r.HasIndex(ProvenanceFramework, key) {
		return nil, false
	}
	idx, err := r.load(ProvenanceFramework, name, version, key)
	return idx, err == nil
}

// LoadPackage loads a hosted (pub.dev) dependency.
func (r *Registry) LoadPackage(name, version string) (*index.Index, bool) {
	key := name + "-" + version
	if !r.HasIndex(ProvenanceHosted, key) {
		return nil, false
	}
	idx, err := r.load(ProvenanceHosted, name, version, key)
	return idx, err == nil
}

// LoadGitPackage loads a git-sourced dependency keyed by "<repo>-<shortcommit>".
func (r *Registry) LoadGitPackage(repoCommitKey string) (*index.Index, bool) {
	if !r.HasIndex(ProvenanceGit, repoCommitKey) {
		return nil, false
	}
	idx, err := r.load(ProvenanceGit, repoCommitKey, "", repoCommitKey)
	return idx, err == nil
}

// LoadLocalPackage loads a workspace-sibling package from the central
// workspace registry mirror (spec.md §4.7).
func (r *Registry) LoadLocalPackage(name string) (*index.Index, bool) {
	if !r.HasIndex(ProvenanceLocal, name) {
		return nil, false
	}
	idx, err := r.load(ProvenanceLocal, name, "", name)
	return idx, err == nil
}

// Unload drops a loaded index for the given provenance/cacheKey, if any.
func (r *Registry) Unload(prov Provenance, cacheKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if group, ok := r.slots[prov]; ok {
		delete(group, cacheKey)
	}
}

// LoadedVersions lists the cache keys currently loaded under prov, sorted.
func (r *Registry) LoadedVersions(prov Provenance) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for k := range r.slots[prov] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
