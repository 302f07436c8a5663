// Package index implements the per-package symbol index: the in-memory
// aggregate that holds every fact one AnalyzerAdapter has produced for one
// source tree, and the navigation queries answered over it.
package index

import "time"

// Kind enumerates the symbol kinds the index understands.
type Kind string

const (
	KindClass         Kind = "class"
	KindMixin         Kind = "mixin"
	KindInterface      Kind = "interface"
	KindEnum          Kind = "enum"
	KindMethod        Kind = "method"
	KindFunction      Kind = "function"
	KindField         Kind = "field"
	KindParameter     Kind = "parameter"
	KindTypeParameter Kind = "typeParameter"
	KindConstructor   Kind = "constructor"
	KindExtension     Kind = "extension"
	KindGetter        Kind = "getter"
	KindSetter        Kind = "setter"
	KindConstant      Kind = "constant"
	KindVariable      Kind = "variable"
	KindOther         Kind = "other"
)

// Role is a bit in an OccurrenceInfo's role bitset.
type Role uint8

const (
	RoleDefinition Role = 1 << iota
	RoleReadAccess
	RoleWriteAccess
	RoleImport
	RoleCall
)

// Has reports whether r contains every bit of other.
func (r Role) Has(other Role) bool { return r&other == other }

// SymbolId is an opaque stable string naming a definition across the
// ecosystem. The index never parses it; only the AnalyzerAdapter knows its
// internal structure (scheme, package, descriptor chain).
type SymbolId string

// Range is a zero-based, half-open source range.
type Range struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Contains reports whether the zero-based position (line, col) falls
// within r (half-open at the end).
func (r Range) Contains(line, col int) bool {
	if line < r.StartLine || line > r.EndLine {
		return false
	}
	if line == r.StartLine && col < r.StartCol {
		return false
	}
	if line == r.EndLine && col >= r.EndCol {
		// End is exclusive, except a zero-width range at EndLine/EndCol
		// would never contain anything; real ranges have EndCol > StartCol
		// on the same line, so >= correctly excludes one-past-the-end.
		return false
	}
	return true
}

// Less orders ranges by start line then start column, for deterministic
// findReferences ordering.
func (r Range) Less(other Range) bool {
	if r.StartLine != other.StartLine {
		return r.StartLine < other.StartLine
	}
	return r.StartCol < other.StartCol
}

// SymbolInfo describes one definition.
type SymbolInfo struct {
	Symbol          SymbolId
	DisplayName     string
	Kind            Kind
	Documentation   []string
	SignatureHint   string
	EnclosingSymbol SymbolId // empty if top-level
}

// OccurrenceInfo is a single positioned mention of a SymbolId.
type OccurrenceInfo struct {
	Symbol         SymbolId
	File           string // relative to the owning index's sourceRoot
	Range          Range
	Roles          Role
	EnclosingRange *Range // the definition range of the symbol textually enclosing this occurrence
}

// RelationshipKind enumerates how two symbols relate for hierarchy queries.
type RelationshipKind string

const (
	RelExtends        RelationshipKind = "extends"
	RelImplements      RelationshipKind = "implements"
	RelTypeDefinition RelationshipKind = "typeDefinition"
	RelReference      RelationshipKind = "reference"
)

// Relationship is a directed edge used to build type hierarchies.
type Relationship struct {
	From SymbolId
	To   SymbolId
	Kind RelationshipKind
}

// DocumentRecord is the authoritative set of facts for one file, as
// produced by an AnalyzerAdapter. SymbolIndex.updateDocument treats this
// as the source of truth: every derived map is recomputed from it.
type DocumentRecord struct {
	RelativePath  string
	Language      string
	Symbols       []SymbolInfo
	Occurrences   []OccurrenceInfo
	Relationships []Relationship
	ContentHash   []byte
	LastIndexedAt time.Time
}

// Stats is the summary returned by SymbolIndex.Stats.
type Stats struct {
	Files         int
	Symbols       int
	References    int
	Definitions   int
	LastIndexedAt *time.Time
}
