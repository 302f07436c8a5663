// Package query implements the query DSL's parser and executor: the
// grammar spec.md §4.8 describes, dispatched against an
// internal/registry.Registry and shaped into a closed set of result
// variants, each with a text and a structured rendering.
package query

import (
	"github.com/aemelyanovff/dart-context/internal/index"
	"github.com/aemelyanovff/dart-context/internal/registry"
)

// Verb names one pipeline stage's operation.
type Verb string

const (
	VerbDef        Verb = "def"
	VerbRefs       Verb = "refs"
	VerbMembers    Verb = "members"
	VerbImpls      Verb = "impls"
	VerbSupertypes Verb = "supertypes"
	VerbSubtypes   Verb = "subtypes"
	VerbHierarchy  Verb = "hierarchy"
	VerbSource     Verb = "source"
	VerbSig        Verb = "sig"
	VerbCallers    Verb = "callers"
	VerbCalls      Verb = "calls"
	VerbFind       Verb = "find"
	VerbGrep       Verb = "grep"
	VerbFiles      Verb = "files"
	VerbStats      Verb = "stats"
	// VerbDeps is a supplemented verb (not in spec.md's base grammar)
	// exposing Registry.PackageGraph as a query-level operation.
	VerbDeps Verb = "deps"
)

// Filter is a 'kind:'/'in:' modifier attached to a stage.
type Filter struct {
	Kind string // "kind" or "in"
	Value string
}

// Stage is one verb application with its arguments and filters.
type Stage struct {
	Verb    Verb
	Args    []string
	Filters []Filter
}

// Pipeline is a parsed query: one or more stages chained by '|'.
type Pipeline struct {
	Stages []Stage
	Raw    string
}

func (s Stage) filterValue(kind string) (string, bool) {
	for _, f := range s.Filters {
		if f.Kind == kind {
			return f.Value, true
		}
	}
	return "", false
}

// --- result variants -----------------------------------------------------

// Result is the tagged-union interface every query result implements.
// Kind distinguishes the variant for serialization/rendering dispatch.
type Result interface {
	Kind() string
}

type DefinitionResult struct {
	Symbol     index.SymbolId
	Occurrence index.OccurrenceInfo
}

func (DefinitionResult) Kind() string { return "definition" }

type ReferencesResult struct {
	Symbol      index.SymbolId
	Occurrences []index.OccurrenceInfo
}

func (ReferencesResult) Kind() string { return "references" }

// AggregatedReferencesResult is refs-by-name across every federated index,
// in the shape of registry.FindAllReferencesByName's hits. No executor verb
// returns it; `refs` always yields a ReferencesResult.
type AggregatedReferencesResult struct {
	Pattern string
	Hits    []registry.NamedReference
}

func (AggregatedReferencesResult) Kind() string { return "aggregatedReferences" }

type MembersResult struct {
	Symbol  index.SymbolId
	Members []index.SymbolInfo
}

func (MembersResult) Kind() string { return "members" }

// HierarchyNode is one level of a hierarchy tree; Up holds ancestors
// (supertypes), Down holds descendants (subtypes).
type HierarchyNode struct {
	Symbol index.SymbolInfo
	Up     []HierarchyNode
	Down   []HierarchyNode
}

type HierarchyResult struct {
	Root HierarchyNode
}

func (HierarchyResult) Kind() string { return "hierarchy" }

type SourceResult struct {
	Symbol index.SymbolId
	File   string
	Lines  []string
}

func (SourceResult) Kind() string { return "source" }

type SearchResult struct {
	Pattern string
	Symbols []index.SymbolInfo
}

func (SearchResult) Kind() string { return "search" }

type GrepResult struct {
	Pattern string
	Matches []index.GrepMatch
}

func (GrepResult) Kind() string { return "grep" }

type CallGraphResult struct {
	Symbol    index.SymbolId
	Direction string // "callers" or "calls"
	Edges     []index.SymbolInfo
}

func (CallGraphResult) Kind() string { return "callGraph" }

// PackageGraphResult surfaces the supplemented `deps` verb.
type PackageGraphResult struct {
	Edges []registry.PackageEdge
}

func (PackageGraphResult) Kind() string { return "packageGraph" }

type StatsResult struct {
	Stats index.Stats
	// PerFile supplements spec.md's base Stats with a per-file rollup,
	// mirroring cmd/canopy/query.go's summaryCmd.
	PerFile map[string]FileStats
}

// FileStats is one file's contribution to a StatsResult's rollup.
type FileStats struct {
	Symbols    int
	References int
}

func (StatsResult) Kind() string { return "stats" }

type FilesResult struct {
	Files []string
}

func (FilesResult) Kind() string { return "files" }

// PipelineResult wraps every intermediate stage's result alongside the
// final one. The text renderer prints only Final; the JSON serialization
// carries every stage.
type PipelineResult struct {
	Stages []Result
	Final  Result
}

func (PipelineResult) Kind() string { return "pipeline" }

type NotFoundResult struct {
	Query string
}

func (NotFoundResult) Kind() string { return "notFound" }

type ErrorResult struct {
	Query   string
	Message string
}

func (ErrorResult) Kind() string { return "error" }
