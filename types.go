package dartcontext

import (
	"github.com/aemelyanovff/dart-context/internal/index"
	"github.com/aemelyanovff/dart-context/internal/indexer"
	"github.com/aemelyanovff/dart-context/internal/query"
	"github.com/aemelyanovff/dart-context/internal/registry"
)

// Public aliases so callers never need to import the internal packages
// directly. These are identical to the internal types at compile time.

type (
	// QueryResult is the tagged union returned by Context.Query; switch on
	// its Kind() or concrete type to interpret it.
	QueryResult = query.Result

	// Event is one entry from the Context.Updates() broadcast stream.
	Event     = indexer.Event
	EventKind = indexer.EventKind

	SymbolInfo     = index.SymbolInfo
	OccurrenceInfo = index.OccurrenceInfo
	SymbolId       = index.SymbolId

	DependencyLoadResult = registry.DependencyLoadResult
	DependencyDiff       = registry.DiffResult
)

const (
	EventInitialIndex = indexer.EventInitialIndex
	EventFileUpdated  = indexer.EventFileUpdated
	EventFileRemoved  = indexer.EventFileRemoved
	EventIndexError   = indexer.EventIndexError
)
