package persist

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aemelyanovff/dart-context/internal/index"
)

// Load reads the artifact at dir (index + manifest.json) into a fresh
// index.Index. sourceRoot overrides the manifest's recorded sourcePath
// when non-empty; otherwise the manifest's sourcePath is used, falling
// back to projectRoot if the manifest itself is silent.
func Load(dir, projectRoot, sourceRoot string) (*index.Index, Manifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, Manifest{}, &index.PersistenceFailureError{Op: "load", Dir: dir, Err: err}
	}

	root := sourceRoot
	if root == "" {
		root = m.SourcePath
	}
	if root == "" {
		root = projectRoot
	}

	store, err := Open(dbPath(dir))
	if err != nil {
		return nil, Manifest{}, &index.PersistenceFailureError{Op: "load", Dir: dir, Err: err}
	}
	defer store.Close()

	idx := index.New(projectRoot, root)
	if err := readAll(store, idx); err != nil {
		return nil, Manifest{}, &index.PersistenceFailureError{Op: "load", Dir: dir, Err: err}
	}
	return idx, m, nil
}

type rawDoc struct {
	id            int64
	language      string
	contentHash   []byte
	lastIndexedAt time.Time
}

func readAll(store *Store, idx *index.Index) error {
	db := store.DB()

	docRows, err := db.Query("SELECT id, path, language, content_hash, last_indexed_at FROM documents")
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}
	defer docRows.Close()

	docsByID := make(map[int64]string)
	docsByPath := make(map[string]rawDoc)
	for docRows.Next() {
		var id int64
		var path, language string
		var hash []byte
		var lastIndexed time.Time
		if err := docRows.Scan(&id, &path, &language, &hash, &lastIndexed); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		docsByID[id] = path
		docsByPath[path] = rawDoc{id: id, language: language, contentHash: hash, lastIndexedAt: lastIndexed}
	}
	if err := docRows.Err(); err != nil {
		return err
	}

	symsByDoc := make(map[int64][]index.SymbolInfo)
	symRows, err := db.Query("SELECT document_id, symbol_id, display_name, kind, documentation, signature_hint, enclosing_symbol FROM symbols ORDER BY document_id, seq")
	if err != nil {
		return fmt.Errorf("query symbols: %w", err)
	}
	defer symRows.Close()
	for symRows.Next() {
		var docID int64
		var symID, display, kind, docs, sig, enclosing string
		if err := symRows.Scan(&docID, &symID, &display, &kind, &docs, &sig, &enclosing); err != nil {
			return fmt.Errorf("scan symbol: %w", err)
		}
		var docLines []string
		if docs != "" {
			docLines = strings.Split(docs, "\n")
		}
		symsByDoc[docID] = append(symsByDoc[docID], index.SymbolInfo{
			Symbol:          index.SymbolId(symID),
			DisplayName:     display,
			Kind:            index.Kind(kind),
			Documentation:   docLines,
			SignatureHint:   sig,
			EnclosingSymbol: index.SymbolId(enclosing),
		})
	}
	if err := symRows.Err(); err != nil {
		return err
	}

	occsByDoc := make(map[int64][]index.OccurrenceInfo)
	occRows, err := db.Query(`SELECT document_id, symbol_id, start_line, start_col, end_line, end_col, roles,
		enclosing_start_line, enclosing_start_col, enclosing_end_line, enclosing_end_col, has_enclosing
		FROM occurrences ORDER BY document_id, seq`)
	if err != nil {
		return fmt.Errorf("query occurrences: %w", err)
	}
	defer occRows.Close()
	for occRows.Next() {
		var docID int64
		var symID string
		var sl, sc, el, ec, roles int
		var esl, esc, eel, eec sql.NullInt64
		var hasEnc bool
		if err := occRows.Scan(&docID, &symID, &sl, &sc, &el, &ec, &roles, &esl, &esc, &eel, &eec, &hasEnc); err != nil {
			return fmt.Errorf("scan occurrence: %w", err)
		}
		path := docsByID[docID]
		occ := index.OccurrenceInfo{
			Symbol: index.SymbolId(symID),
			File:   path,
			Range:  index.Range{StartLine: sl, StartCol: sc, EndLine: el, EndCol: ec},
			Roles:  index.Role(roles),
		}
		if hasEnc {
			er := index.Range{StartLine: int(esl.Int64), StartCol: int(esc.Int64), EndLine: int(eel.Int64), EndCol: int(eec.Int64)}
			occ.EnclosingRange = &er
		}
		occsByDoc[docID] = append(occsByDoc[docID], occ)
	}
	if err := occRows.Err(); err != nil {
		return err
	}

	relsByDoc := make(map[int64][]index.Relationship)
	relRows, err := db.Query("SELECT document_id, from_symbol, to_symbol, kind FROM relationships")
	if err != nil {
		return fmt.Errorf("query relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var docID int64
		var from, to, kind string
		if err := relRows.Scan(&docID, &from, &to, &kind); err != nil {
			return fmt.Errorf("scan relationship: %w", err)
		}
		relsByDoc[docID] = append(relsByDoc[docID], index.Relationship{From: index.SymbolId(from), To: index.SymbolId(to), Kind: index.RelationshipKind(kind)})
	}
	if err := relRows.Err(); err != nil {
		return err
	}

	for path, raw := range docsByPath {
		rec := index.DocumentRecord{
			RelativePath:  path,
			Language:      raw.language,
			Symbols:       symsByDoc[raw.id],
			Occurrences:   occsByDoc[raw.id],
			Relationships: relsByDoc[raw.id],
			ContentHash:   raw.contentHash,
			LastIndexedAt: raw.lastIndexedAt,
		}
		if err := idx.UpdateDocument(path, rec); err != nil {
			return fmt.Errorf("replay document %q: %w", path, err)
		}
	}
	return nil
}
