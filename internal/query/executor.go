package query

import (
	"github.com/aemelyanovff/dart-context/internal/index"
	"github.com/aemelyanovff/dart-context/internal/registry"
)

// Executor dispatches a parsed Pipeline against a Registry, implementing
// the pipelining contract of spec.md §4.8: a stage's implicit argument
// list is the SymbolIds carried by the previous stage's result.
type Executor struct {
	Registry *registry.Registry
}

// NewExecutor wraps reg for query execution.
func NewExecutor(reg *registry.Registry) *Executor {
	return &Executor{Registry: reg}
}

// Run parses and executes text, returning the appropriate result variant.
// Parse errors surface as ErrorResult rather than a Go error, per spec.md
// §4.8's "Errors in the first stage abort the pipeline and surface as an
// Error result variant" (a malformed query is exactly that).
func (ex *Executor) Run(text string) Result {
	pipeline, err := Parse(text)
	if err != nil {
		return ErrorResult{Query: text, Message: err.Error()}
	}
	return ex.RunPipeline(pipeline)
}

// RunPipeline executes an already-parsed Pipeline.
func (ex *Executor) RunPipeline(p Pipeline) Result {
	if len(p.Stages) == 1 {
		res, _ := ex.runStage(p.Stages[0], nil)
		return res
	}

	var stageResults []Result
	var implicit []index.SymbolId
	for i, stage := range p.Stages {
		res, out := ex.runStage(stage, implicit)
		stageResults = append(stageResults, res)
		if _, isErr := res.(ErrorResult); isErr || i == len(p.Stages)-1 {
			return PipelineResult{Stages: stageResults, Final: res}
		}
		implicit = out
	}
	return PipelineResult{Stages: stageResults}
}

// runStage executes one stage given the implicit symbol set carried from
// the prior stage (nil for the first stage), returning the stage's result
// and the SymbolIds chainable into the next stage.
func (ex *Executor) runStage(stage Stage, implicit []index.SymbolId) (Result, []index.SymbolId) {
	switch stage.Verb {
	case VerbFind:
		return ex.runFind(stage)
	case VerbGrep:
		return ex.runGrep(stage), nil
	case VerbFiles:
		return ex.runFiles(stage), nil
	case VerbStats:
		return ex.runStats(stage), nil
	case VerbDeps:
		return ex.runDeps(), nil
	}

	symbols, explicit, err := ex.resolveOperands(stage, implicit)
	if err != nil {
		return ErrorResult{Message: err.Error()}, nil
	}
	if len(symbols) == 0 {
		if !explicit && implicit == nil {
			return NotFoundResult{Query: joinArgs(stage.Args)}, nil
		}
		return emptyResultFor(stage.Verb), nil
	}

	switch stage.Verb {
	case VerbDef:
		return ex.runDef(symbols[0])
	case VerbRefs:
		return ex.runRefs(symbols[0])
	case VerbMembers:
		return ex.runMembers(symbols)
	case VerbImpls, VerbSubtypes:
		return ex.runSubtypes(symbols)
	case VerbSupertypes:
		return ex.runSupertypes(symbols)
	case VerbHierarchy:
		return ex.runHierarchy(symbols[0]), nil
	case VerbSource:
		return ex.runSource(symbols[0]), nil
	case VerbSig:
		return ex.runSig(symbols[0]), nil
	case VerbCallers:
		return ex.runCallGraph(symbols, "callers")
	case VerbCalls:
		return ex.runCallGraph(symbols, "calls")
	}
	return ErrorResult{Message: "unhandled verb " + string(stage.Verb)}, nil
}

// resolveOperands determines a stage's operand SymbolIds: explicit args
// (resolved by pattern via FindSymbols, filtered by kind:/in:) take
// precedence over the implicit set carried from the previous stage.
func (ex *Executor) resolveOperands(stage Stage, implicit []index.SymbolId) ([]index.SymbolId, bool, error) {
	if len(stage.Args) == 0 {
		return implicit, false, nil
	}
	var ids []index.SymbolId
	for _, arg := range stage.Args {
		for _, s := range ex.findFiltered(arg, stage.Filters) {
			ids = append(ids, s.Symbol)
		}
	}
	return ids, true, nil
}

func (ex *Executor) findFiltered(pattern string, filters []Filter) []index.SymbolInfo {
	var symbols []index.SymbolInfo
	if in, ok := filterValue(filters, "in"); ok {
		if idx, found := ex.Registry.IndexNamed(in); found {
			symbols = idx.FindSymbols(pattern)
		}
	} else {
		symbols = ex.Registry.FindSymbols(pattern)
	}

	if kind, ok := filterValue(filters, "kind"); ok {
		filtered := symbols[:0:0]
		for _, s := range symbols {
			if string(s.Kind) == kind {
				filtered = append(filtered, s)
			}
		}
		symbols = filtered
	}
	return symbols
}

func filterValue(filters []Filter, key string) (string, bool) {
	for _, f := range filters {
		if f.Kind == key {
			return f.Value, true
		}
	}
	return "", false
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// emptyResultFor implements the empty-propagation contract: a downstream
// stage fed an empty implicit set returns an empty result of its own
// natural kind, never an error or NotFoundResult (testable property 7).
func emptyResultFor(v Verb) Result {
	switch v {
	case VerbDef:
		return DefinitionResult{}
	case VerbRefs:
		return ReferencesResult{}
	case VerbMembers:
		return MembersResult{}
	case VerbImpls, VerbSubtypes:
		return MembersResult{} // subtype/impl lists share SymbolInfo-list shape
	case VerbSupertypes:
		return MembersResult{}
	case VerbHierarchy:
		return HierarchyResult{}
	case VerbSource:
		return SourceResult{}
	case VerbSig:
		return SourceResult{}
	case VerbCallers, VerbCalls:
		return CallGraphResult{Direction: string(v)}
	}
	return ErrorResult{Message: "unhandled verb " + string(v)}
}

func (ex *Executor) runFind(stage Stage) (Result, []index.SymbolId) {
	if len(stage.Args) == 0 {
		return ErrorResult{Message: "find requires a pattern argument"}, nil
	}
	var symbols []index.SymbolInfo
	for _, arg := range stage.Args {
		symbols = append(symbols, ex.findFiltered(arg, stage.Filters)...)
	}
	ids := make([]index.SymbolId, 0, len(symbols))
	for _, s := range symbols {
		ids = append(ids, s.Symbol)
	}
	return SearchResult{Pattern: joinArgs(stage.Args), Symbols: symbols}, ids
}

func (ex *Executor) runGrep(stage Stage) Result {
	if len(stage.Args) == 0 {
		return ErrorResult{Message: "grep requires a pattern argument"}
	}
	opts := registry.GrepOptions{GrepOptions: index.GrepOptions{Pattern: stage.Args[0]}}
	if in, ok := filterValue(stage.Filters, "in"); ok {
		opts.PathFilter = in
	}
	matches, err := ex.Registry.Grep(opts)
	if err != nil {
		return ErrorResult{Query: stage.Args[0], Message: err.Error()}
	}
	return GrepResult{Pattern: stage.Args[0], Matches: matches}
}

func (ex *Executor) runFiles(stage Stage) Result {
	idx := ex.Registry.Project()
	if in, ok := filterValue(stage.Filters, "in"); ok {
		if named, found := ex.Registry.IndexNamed(in); found {
			idx = named
		}
	}
	return FilesResult{Files: idx.Files()}
}

func (ex *Executor) runStats(stage Stage) Result {
	idx := ex.Registry.Project()
	if in, ok := filterValue(stage.Filters, "in"); ok {
		if named, found := ex.Registry.IndexNamed(in); found {
			idx = named
		}
	}

	perFile := make(map[string]FileStats)
	for path, doc := range idx.Documents() {
		refs := 0
		defs := 0
		for _, occ := range doc.Occurrences {
			if occ.Roles.Has(index.RoleDefinition) {
				defs++
			} else {
				refs++
			}
		}
		perFile[path] = FileStats{Symbols: len(doc.Symbols), References: refs + defs}
	}

	return StatsResult{Stats: idx.Stats(), PerFile: perFile}
}

func (ex *Executor) runDeps() Result {
	return PackageGraphResult{Edges: ex.Registry.PackageGraph()}
}

func (ex *Executor) runDef(id index.SymbolId) (Result, []index.SymbolId) {
	occ, _, ok := ex.Registry.FindDefinition(id)
	if !ok {
		return NotFoundResult{Query: string(id)}, nil
	}
	return DefinitionResult{Symbol: id, Occurrence: occ}, []index.SymbolId{id}
}

func (ex *Executor) runRefs(id index.SymbolId) (Result, []index.SymbolId) {
	occs := ex.Registry.FindReferences(id)
	return ReferencesResult{Symbol: id, Occurrences: occs}, []index.SymbolId{id}
}

func (ex *Executor) runMembers(ids []index.SymbolId) (Result, []index.SymbolId) {
	seen := make(map[index.SymbolId]struct{})
	var members []index.SymbolInfo
	for _, id := range ids {
		for _, m := range ex.Registry.MembersOf(id) {
			if _, dup := seen[m.Symbol]; dup {
				continue
			}
			seen[m.Symbol] = struct{}{}
			members = append(members, m)
		}
	}
	out := make([]index.SymbolId, 0, len(members))
	for _, m := range members {
		out = append(out, m.Symbol)
	}
	return MembersResult{Members: members}, out
}

func (ex *Executor) runSupertypes(ids []index.SymbolId) (Result, []index.SymbolId) {
	return ex.symbolListResult(ids, ex.Registry.SupertypesOf)
}

func (ex *Executor) runSubtypes(ids []index.SymbolId) (Result, []index.SymbolId) {
	return ex.symbolListResult(ids, ex.Registry.SubtypesOf)
}

func (ex *Executor) symbolListResult(ids []index.SymbolId, get func(index.SymbolId) []index.SymbolInfo) (Result, []index.SymbolId) {
	seen := make(map[index.SymbolId]struct{})
	var members []index.SymbolInfo
	for _, id := range ids {
		for _, m := range get(id) {
			if _, dup := seen[m.Symbol]; dup {
				continue
			}
			seen[m.Symbol] = struct{}{}
			members = append(members, m)
		}
	}
	out := make([]index.SymbolId, 0, len(members))
	for _, m := range members {
		out = append(out, m.Symbol)
	}
	return MembersResult{Members: members}, out
}

func (ex *Executor) runCallGraph(ids []index.SymbolId, direction string) (Result, []index.SymbolId) {
	get := ex.Registry.GetCallers
	if direction == "calls" {
		get = ex.Registry.GetCalls
	}
	seen := make(map[index.SymbolId]struct{})
	var edges []index.SymbolInfo
	for _, id := range ids {
		for _, s := range get(id) {
			if _, dup := seen[s.Symbol]; dup {
				continue
			}
			seen[s.Symbol] = struct{}{}
			edges = append(edges, s)
		}
	}
	out := make([]index.SymbolId, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Symbol)
	}
	return CallGraphResult{Symbol: firstOrEmpty(ids), Direction: direction, Edges: edges}, out
}

func firstOrEmpty(ids []index.SymbolId) index.SymbolId {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// runHierarchy builds a tree of transitive supertypes (Up) and subtypes
// (Down) rooted at id, guarded by a visited set so malformed cyclic
// relationships still terminate (testable property 6).
func (ex *Executor) runHierarchy(id index.SymbolId) Result {
	root, ok := ex.Registry.GetSymbol(id)
	if !ok {
		return NotFoundResult{Query: string(id)}
	}
	node := HierarchyNode{Symbol: root}
	node.Up = ex.hierarchyWalk(id, map[index.SymbolId]bool{id: true}, ex.Registry.SupertypesOf, true)
	node.Down = ex.hierarchyWalk(id, map[index.SymbolId]bool{id: true}, ex.Registry.SubtypesOf, false)
	return HierarchyResult{Root: node}
}

// hierarchyWalk recurses one direction (up==true walks supertypes into
// Up, up==false walks subtypes into Down), sharing one visited set per
// direction so a cycle is reported at most once.
func (ex *Executor) hierarchyWalk(id index.SymbolId, visited map[index.SymbolId]bool, get func(index.SymbolId) []index.SymbolInfo, up bool) []HierarchyNode {
	var out []HierarchyNode
	for _, s := range get(id) {
		if visited[s.Symbol] {
			continue
		}
		visited[s.Symbol] = true
		child := HierarchyNode{Symbol: s}
		grandchildren := ex.hierarchyWalk(s.Symbol, visited, get, up)
		if up {
			child.Up = grandchildren
		} else {
			child.Down = grandchildren
		}
		out = append(out, child)
	}
	return out
}

func (ex *Executor) runSource(id index.SymbolId) Result {
	occ, _, ok := ex.Registry.FindDefinition(id)
	if !ok {
		return NotFoundResult{Query: string(id)}
	}
	path, ok := ex.Registry.ResolveFilePath(id)
	if !ok {
		return NotFoundResult{Query: string(id)}
	}
	lines, err := readRange(path, occ.Range)
	if err != nil {
		return ErrorResult{Query: string(id), Message: err.Error()}
	}
	return SourceResult{Symbol: id, File: occ.File, Lines: lines}
}

// runSig answers the supplemented `sig` verb: SymbolInfo.SignatureHint
// when recorded, falling back to the definition's source line.
func (ex *Executor) runSig(id index.SymbolId) Result {
	sym, ok := ex.Registry.GetSymbol(id)
	if !ok {
		return NotFoundResult{Query: string(id)}
	}
	if sym.SignatureHint != "" {
		return SourceResult{Symbol: id, Lines: []string{sym.SignatureHint}}
	}
	return ex.runSource(id)
}

