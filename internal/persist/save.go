package persist

import (
	"fmt"
	"os"
	"time"

	"github.com/aemelyanovff/dart-context/internal/index"
)

// Save persists idx to dir/index (SQLite) + dir/manifest.json, atomically:
// the SQLite file is built under a temp path and renamed into place only
// once the transaction commits cleanly, and the manifest is written last
// so a crash mid-save never leaves a manifest pointing at a partial db.
func Save(idx *index.Index, dir string, provType ProvenanceType, name, version string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &index.PersistenceFailureError{Op: "save", Dir: dir, Err: err}
	}

	tmpDB := dbPath(dir) + ".tmp"
	os.Remove(tmpDB)

	store, err := Open(tmpDB)
	if err != nil {
		return &index.PersistenceFailureError{Op: "save", Dir: dir, Err: err}
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return &index.PersistenceFailureError{Op: "save", Dir: dir, Err: err}
	}

	if err := writeAll(store, idx); err != nil {
		store.Close()
		return &index.PersistenceFailureError{Op: "save", Dir: dir, Err: err}
	}
	store.Close()

	if err := os.Rename(tmpDB, dbPath(dir)); err != nil {
		return &index.PersistenceFailureError{Op: "save", Dir: dir, Err: err}
	}

	m := Manifest{
		Type:         provType,
		Name:         name,
		Version:      version,
		SourcePath:   idx.SourceRoot,
		IndexedAt:    time.Now(),
		IndexedPaths: idx.Files(),
	}
	if err := WriteManifest(dir, m); err != nil {
		return &index.PersistenceFailureError{Op: "save", Dir: dir, Err: err}
	}
	return nil
}

func writeAll(store *Store, idx *index.Index) error {
	tx, err := store.DB().Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	docStmt, err := tx.Prepare("INSERT INTO documents(path, language, content_hash, last_indexed_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer docStmt.Close()

	symStmt, err := tx.Prepare("INSERT INTO symbols(symbol_id, document_id, display_name, kind, documentation, signature_hint, enclosing_symbol, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer symStmt.Close()

	occStmt, err := tx.Prepare(`INSERT INTO occurrences(
		document_id, symbol_id, start_line, start_col, end_line, end_col, roles,
		enclosing_start_line, enclosing_start_col, enclosing_end_line, enclosing_end_col, has_enclosing, seq
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer occStmt.Close()

	relStmt, err := tx.Prepare("INSERT INTO relationships(document_id, from_symbol, to_symbol, kind) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer relStmt.Close()

	for path, doc := range idx.Documents() {
		res, err := docStmt.Exec(path, doc.Language, doc.ContentHash, doc.LastIndexedAt)
		if err != nil {
			return fmt.Errorf("insert document %q: %w", path, err)
		}
		docID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for seq, sym := range doc.Symbols {
			docsJoined := joinLines(sym.Documentation)
			if _, err := symStmt.Exec(string(sym.Symbol), docID, sym.DisplayName, string(sym.Kind), docsJoined, sym.SignatureHint, string(sym.EnclosingSymbol), seq); err != nil {
				return fmt.Errorf("insert symbol %q: %w", sym.Symbol, err)
			}
		}

		for seq, occ := range doc.Occurrences {
			var hasEnc bool
			var esl, esc, eel, eec any
			if occ.EnclosingRange != nil {
				hasEnc = true
				esl, esc, eel, eec = occ.EnclosingRange.StartLine, occ.EnclosingRange.StartCol, occ.EnclosingRange.EndLine, occ.EnclosingRange.EndCol
			}
			if _, err := occStmt.Exec(docID, string(occ.Symbol), occ.Range.StartLine, occ.Range.StartCol, occ.Range.EndLine, occ.Range.EndCol, int(occ.Roles), esl, esc, eel, eec, hasEnc, seq); err != nil {
				return fmt.Errorf("insert occurrence: %w", err)
			}
		}

		for _, rel := range doc.Relationships {
			if _, err := relStmt.Exec(docID, string(rel.From), string(rel.To), string(rel.Kind)); err != nil {
				return fmt.Errorf("insert relationship: %w", err)
			}
		}
	}

	return tx.Commit()
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}
