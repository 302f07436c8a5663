package index

import "fmt"

// InvalidDocumentError reports that an AnalyzerAdapter returned malformed
// facts: an occurrence with no owning symbol, a range outside the file, or
// a record whose RelativePath disagrees with the path it was filed under.
type InvalidDocumentError struct {
	Path   string
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid document %q: %s", e.Path, e.Reason)
}

// IndexerDisposedError is returned by any operation attempted after
// Dispose. It is fatal to the indexer it names.
type IndexerDisposedError struct {
	PackagePath string
}

func (e *IndexerDisposedError) Error() string {
	return fmt.Sprintf("indexer for %q is disposed", e.PackagePath)
}

// AnalyzerFailureError wraps a per-file error returned by an
// AnalyzerAdapter. It is treated as transient by the indexer: the file is
// skipped for the current refresh and any previously-known facts for it
// are retained.
type AnalyzerFailureError struct {
	Path string
	Err  error
}

func (e *AnalyzerFailureError) Error() string {
	return fmt.Sprintf("analyzer failed on %q: %s", e.Path, e.Err)
}

func (e *AnalyzerFailureError) Unwrap() error { return e.Err }

// PersistenceFailureError wraps a save or load failure against an
// IndexPersistence artifact.
type PersistenceFailureError struct {
	Op  string // "save" or "load"
	Dir string
	Err error
}

func (e *PersistenceFailureError) Error() string {
	return fmt.Sprintf("persistence %s at %q: %s", e.Op, e.Dir, e.Err)
}

func (e *PersistenceFailureError) Unwrap() error { return e.Err }

// NotFoundError signals that a query targeted a symbol or file absent from
// every loaded index. Callers surface this as a NotFoundResult, never as
// an error path.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Query)
}

// MalformedQueryError signals that the query parser rejected input text.
type MalformedQueryError struct {
	Query  string
	Reason string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("malformed query %q: %s", e.Query, e.Reason)
}
