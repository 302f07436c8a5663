// Package analyzer defines the AnalyzerAdapter contract the core consumes
// (spec.md §4.3) and a reference implementation for Dart source. The core
// is written against the Adapter interface only — nothing in internal/index,
// internal/indexer, internal/registry, or internal/workspace imports this
// package's concrete Dart scanner, so a second LanguageBinding can be added
// by implementing Adapter without touching the core.
package analyzer

import (
	"context"

	"github.com/aemelyanovff/dart-context/internal/index"
)

// ChangeType enumerates the kinds of filesystem change an Adapter reports
// through its FileChanges stream.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeMoved    ChangeType = "moved"
)

// FileChange is one event from an Adapter's change stream.
type FileChange struct {
	Path string // for Moved, the destination path
	From string // populated only when Type == ChangeMoved
	Type ChangeType
}

// Adapter is the capability contract an AnalyzerAdapter must satisfy.
// Implementations resolve syntactic/semantic facts for one package; the
// core places no requirement on their internal scheduling beyond what
// spec.md §4.3/§5 describe.
type Adapter interface {
	// ResolveUnit produces symbols, occurrences, and relationships for one
	// file. A nil record (no error) means the file is not analyzable, does
	// not belong to the package, or is ignored.
	ResolveUnit(ctx context.Context, absolutePath string) (*index.DocumentRecord, error)

	// ListSourceFiles enumerates every indexable absolute path, in
	// unspecified order.
	ListSourceFiles(ctx context.Context) ([]string, error)

	// FileChanges returns a channel of file-change events. Implementations
	// may support only a single consumer; the core never calls this twice
	// concurrently against one Adapter instance.
	FileChanges() <-chan FileChange

	// Dispose releases resources (file watches, subprocess handles, etc.)
	// held by the adapter. Idempotent.
	Dispose() error
}

// Emitter is implemented by adapters whose FileChanges stream has no
// detection of its own and must be fed externally. The workspace watcher
// forwards the filesystem events it already detects into any Adapter
// satisfying this interface, so spec.md §4.3's fileChanges capability
// carries real events instead of sitting unfed.
type Emitter interface {
	Emit(FileChange)
}

// IsIndexable reports whether path should be considered for indexing
// given a package root and the language's own exclusion rules. Adapters
// are free to apply additional filtering inside ResolveUnit; this helper
// exists so the indexer can cheaply reject paths before calling into the
// adapter at all (spec.md §4.4 refreshFile step 1).
type IsIndexable func(absolutePath string) bool
