package analyzer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aemelyanovff/dart-context/internal/index"
)

// DartAdapter is a reference AnalyzerAdapter for Dart source: a heuristic
// regexp scanner over class/mixin/enum/extension/function declarations,
// not a full grammar. spec.md §1 places the real analyzer out of scope
// ("an opaque AnalyzerAdapter delivering resolved units"); this exists so
// the core has something concrete to exercise in tests and CLI bootstrap.
type DartAdapter struct {
	PackageName string
	Root        string // absolute path to lib/ (or package root)

	changes chan FileChange
	mu      sync.Mutex
	closed  bool
}

// NewDartAdapter creates an adapter rooted at root, scoped to packageName
// for SymbolId construction (`dart <package> <descriptor-chain>`).
func NewDartAdapter(packageName, root string) *DartAdapter {
	return &DartAdapter{
		PackageName: packageName,
		Root:        root,
		changes:     make(chan FileChange, 256),
	}
}

var (
	genDirNames   = map[string]bool{".dart_tool": true, "build": true, ".git": true, ".symlinks": true}
	genFileSuffix = []string{".g.dart", ".freezed.dart", ".gr.dart", ".mocks.dart"}
)

func isIgnoredDartPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasPrefix(part, ".") || genDirNames[part] {
			return true
		}
	}
	for _, suf := range genFileSuffix {
		if strings.HasSuffix(path, suf) {
			return true
		}
	}
	return !strings.HasSuffix(path, ".dart")
}

// ListSourceFiles walks Root, skipping ignored directories and generated
// files (spec.md §4.3.2, §4.7.1).
func (a *DartAdapter) ListSourceFiles(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(a.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != a.Root && (strings.HasPrefix(name, ".") || genDirNames[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if isIgnoredDartPath(path) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

func (a *DartAdapter) FileChanges() <-chan FileChange { return a.changes }

// Emit is used by watcher glue to push a change into the adapter's stream.
// Safe to call after Dispose (it becomes a no-op).
func (a *DartAdapter) Emit(c FileChange) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	select {
	case a.changes <- c:
	default: // drop-oldest under backpressure, per spec.md §9 broadcast policy
		select {
		case <-a.changes:
		default:
		}
		select {
		case a.changes <- c:
		default:
		}
	}
}

func (a *DartAdapter) Dispose() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	close(a.changes)
	return nil
}

var (
	reClass     = regexp.MustCompile(`^\s*(?:abstract\s+)?class\s+([A-Za-z_]\w*)`)
	reMixin     = regexp.MustCompile(`^\s*mixin\s+([A-Za-z_]\w*)`)
	reEnum      = regexp.MustCompile(`^\s*enum\s+([A-Za-z_]\w*)`)
	reExtension = regexp.MustCompile(`^\s*extension\s+([A-Za-z_]\w*)?\s+on\s+([A-Za-z_][\w<>, ]*)`)
	reExtends   = regexp.MustCompile(`\bextends\s+([A-Za-z_]\w*)`)
	reImplements = regexp.MustCompile(`\bimplements\s+([A-Za-z_][\w<>, ]*)`)
	reWith      = regexp.MustCompile(`\bwith\s+([A-Za-z_][\w<>, ]*)`)
	reImport    = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	reMethod    = regexp.MustCompile(`^\s*(?:static\s+)?(?:[\w<>,?\[\] ]+\s+)?([A-Za-z_]\w*)\s*\(`)
	reGetter    = regexp.MustCompile(`^\s*(?:static\s+)?[\w<>,?\[\] ]+\s+get\s+([A-Za-z_]\w*)`)
	reSetter    = regexp.MustCompile(`^\s*(?:static\s+)?(?:void\s+)?set\s+([A-Za-z_]\w*)`)
	reCall      = regexp.MustCompile(`([A-Za-z_]\w*)\s*\(`)
	reTopFunc   = regexp.MustCompile(`^([\w<>,?\[\] ]+)\s+([A-Za-z_]\w*)\s*\(`)
)

// ResolveUnit scans absolutePath with the heuristics above. It never
// returns an error for ordinary parse ambiguity — the scanner is
// best-effort by design — only for I/O failures, which the indexer treats
// as AnalyzerFailure (spec.md §7).
func (a *DartAdapter) ResolveUnit(ctx context.Context, absolutePath string) (*index.DocumentRecord, error) {
	if isIgnoredDartPath(absolutePath) {
		return nil, nil
	}
	rel, err := filepath.Rel(a.Root, absolutePath)
	if err != nil {
		rel = absolutePath
	}
	rel = filepath.ToSlash(rel)

	content, err := os.ReadFile(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			// A deleted file resolves to "absent", not AnalyzerFailure, so
			// refreshFile routes it to index.RemoveDocument instead of
			// silently retaining its stale symbols (spec.md §4.3 op 1).
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", absolutePath, err)
	}

	lines := strings.Split(string(content), "\n")

	var symbols []index.SymbolInfo
	var occurrences []index.OccurrenceInfo
	var relationships []index.Relationship

	type openType struct {
		id    index.SymbolId
		brace int // brace depth inside the type body, where its members sit
	}
	var typeStack []openType
	braceDepth := 0

	pushTypeOccurrence := func(id index.SymbolId, name string, kind index.Kind, lineIdx int, col int) {
		symbols = append(symbols, index.SymbolInfo{Symbol: id, DisplayName: name, Kind: kind})
		endCol := col + len(name)
		r := index.Range{StartLine: lineIdx, StartCol: col, EndLine: lineIdx, EndCol: endCol}
		occurrences = append(occurrences, index.OccurrenceInfo{Symbol: id, File: rel, Range: r, Roles: index.RoleDefinition})
	}

	for i, line := range lines {
		trimmed := line

		if m := reImport.FindStringSubmatch(trimmed); m != nil {
			col := strings.Index(line, "import")
			r := index.Range{StartLine: i, StartCol: col, EndLine: i, EndCol: len(line)}
			// Imports don't own a SymbolId in this package's index; they're
			// recorded as an occurrence of a synthetic cross-package symbol
			// so registry-level package-graph rollups (SPEC_FULL §4) have
			// something to walk without polluting bySymbol with externals.
			occurrences = append(occurrences, index.OccurrenceInfo{
				Symbol: index.SymbolId("import:" + m[1]),
				File:   rel,
				Range:  r,
				Roles:  index.RoleImport,
			})
		}

		var newType index.SymbolId
		var newKind index.Kind
		var newName string
		col := 0

		switch {
		case reClass.MatchString(trimmed):
			m := reClass.FindStringSubmatch(trimmed)
			newName = m[1]
			newKind = index.KindClass
			col = strings.Index(line, newName)
		case reMixin.MatchString(trimmed):
			m := reMixin.FindStringSubmatch(trimmed)
			newName = m[1]
			newKind = index.KindMixin
			col = strings.Index(line, newName)
		case reEnum.MatchString(trimmed):
			m := reEnum.FindStringSubmatch(trimmed)
			newName = m[1]
			newKind = index.KindEnum
			col = strings.Index(line, newName)
		case reExtension.MatchString(trimmed):
			m := reExtension.FindStringSubmatch(trimmed)
			newName = m[1]
			if newName == "" {
				newName = "$anonymous"
			}
			newKind = index.KindExtension
			col = strings.Index(line, "extension")
		}

		if newName != "" {
			newType = index.SymbolId(fmt.Sprintf("dart %s %s#", a.PackageName, newName))
			pushTypeOccurrence(newType, newName, newKind, i, col)

			for _, m := range reExtends.FindAllStringSubmatch(trimmed, -1) {
				relationships = append(relationships, index.Relationship{From: newType, To: superSymbol(a.PackageName, m[1]), Kind: index.RelExtends})
			}
			for _, group := range reImplements.FindAllStringSubmatch(trimmed, -1) {
				for _, name := range splitTypeList(group[1]) {
					relationships = append(relationships, index.Relationship{From: newType, To: superSymbol(a.PackageName, name), Kind: index.RelImplements})
				}
			}
			for _, group := range reWith.FindAllStringSubmatch(trimmed, -1) {
				for _, name := range splitTypeList(group[1]) {
					relationships = append(relationships, index.Relationship{From: newType, To: superSymbol(a.PackageName, name), Kind: index.RelImplements})
				}
			}

			typeStack = append(typeStack, openType{id: newType, brace: braceDepth + 1})
		} else if len(typeStack) > 0 {
			current := typeStack[len(typeStack)-1].id
			if m := reGetter.FindStringSubmatch(trimmed); m != nil && braceDepth == typeStack[len(typeStack)-1].brace {
				addMember(&symbols, &occurrences, current, m[1], index.KindGetter, rel, i, strings.Index(line, m[1]))
			} else if m := reSetter.FindStringSubmatch(trimmed); m != nil && braceDepth == typeStack[len(typeStack)-1].brace {
				addMember(&symbols, &occurrences, current, m[1], index.KindSetter, rel, i, strings.Index(line, m[1]))
			} else if m := reMethod.FindStringSubmatch(trimmed); m != nil && braceDepth == typeStack[len(typeStack)-1].brace {
				name := m[1]
				if name != "if" && name != "for" && name != "while" && name != "switch" {
					kind := index.KindMethod
					if name == lastSegment(string(current)) {
						kind = index.KindConstructor
					}
					addMember(&symbols, &occurrences, current, name, kind, rel, i, strings.Index(line, name))
				}
			}
		} else if m := reTopFunc.FindStringSubmatch(trimmed); m != nil {
			name := m[2]
			fnID := index.SymbolId(fmt.Sprintf("dart %s %s.", a.PackageName, name))
			col := strings.Index(line, name)
			pushTypeOccurrence(fnID, name, index.KindFunction, i, col)
		}

		// Calls: any `name(` that isn't a keyword, on a line inside a tracked
		// type's body, recorded with EnclosingRange pointed at that type's
		// definition range. Calls are not attributed to the member they sit
		// in, and lines outside any type (top-level functions) are not
		// scanned for calls.
		if len(typeStack) > 0 {
			enclosing := findEnclosingDefRange(occurrences, typeStack[len(typeStack)-1].id)
			for _, m := range reCall.FindAllStringSubmatchIndex(trimmed, -1) {
				name := trimmed[m[2]:m[3]]
				if isKeyword(name) {
					continue
				}
				r := index.Range{StartLine: i, StartCol: m[2], EndLine: i, EndCol: m[3]}
				occurrences = append(occurrences, index.OccurrenceInfo{
					Symbol: index.SymbolId(fmt.Sprintf("dart %s %s.", a.PackageName, name)),
					File:   rel, Range: r, Roles: index.RoleCall, EnclosingRange: enclosing,
				})
			}
		}

		braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		for len(typeStack) > 0 && braceDepth <= typeStack[len(typeStack)-1].brace-1 {
			typeStack = typeStack[:len(typeStack)-1]
		}
	}

	h := sha256.Sum256(content)
	return &index.DocumentRecord{
		RelativePath:  rel,
		Language:      "dart",
		Symbols:       symbols,
		Occurrences:   occurrences,
		Relationships: relationships,
		ContentHash:   h[:],
		LastIndexedAt: time.Now(),
	}, nil
}

func addMember(symbols *[]index.SymbolInfo, occurrences *[]index.OccurrenceInfo, parent index.SymbolId, name string, kind index.Kind, file string, line, col int) {
	id := index.SymbolId(fmt.Sprintf("%s%s(", parent, name))
	*symbols = append(*symbols, index.SymbolInfo{Symbol: id, DisplayName: name, Kind: kind, EnclosingSymbol: parent})
	r := index.Range{StartLine: line, StartCol: col, EndLine: line, EndCol: col + len(name)}
	*occurrences = append(*occurrences, index.OccurrenceInfo{Symbol: id, File: file, Range: r, Roles: index.RoleDefinition})
}

func findEnclosingDefRange(occs []index.OccurrenceInfo, sym index.SymbolId) *index.Range {
	for i := len(occs) - 1; i >= 0; i-- {
		if occs[i].Symbol == sym && occs[i].Roles.Has(index.RoleDefinition) {
			r := occs[i].Range
			return &r
		}
	}
	return nil
}

func superSymbol(pkg, name string) index.SymbolId {
	return index.SymbolId(fmt.Sprintf("dart %s %s#", pkg, strings.TrimSpace(name)))
}

func splitTypeList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.IndexAny(part, "<"); idx >= 0 {
			part = part[:idx]
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lastSegment(symbolID string) string {
	parts := strings.Fields(symbolID)
	if len(parts) < 3 {
		return ""
	}
	name := strings.TrimSuffix(parts[2], "#")
	return name
}

var keywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "super": true, "this": true,
}

func isKeyword(s string) bool { return keywords[s] }
