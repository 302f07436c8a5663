package registry

import (
	"sort"
	"strings"

	"github.com/aemelyanovff/dart-context/internal/index"
)

// PackageEdge is one edge of the rolled-up import graph between packages
// (not files), grounded on the teacher's query_package_graph.go.
type PackageEdge struct {
	From  string
	To    string
	Count int
}

// PackageGraph rolls up every loaded index's `import:` occurrences (see
// analyzer.DartAdapter.ResolveUnit) to the owning package name, returning
// the aggregated edge list sorted by (From, To) for determinism.
func (r *Registry) PackageGraph() []PackageEdge {
	counts := make(map[[2]string]int)

	for _, slot := range r.orderedSlots() {
		if slot.index == nil {
			continue
		}
		from := slot.name
		for _, doc := range slot.index.Documents() {
			for _, occ := range doc.Occurrences {
				if !occ.Roles.Has(index.RoleImport) {
					continue
				}
				to := importTargetPackage(string(occ.Symbol))
				if to == "" {
					continue
				}
				counts[[2]string{from, to}]++
			}
		}
	}

	edges := make([]PackageEdge, 0, len(counts))
	for k, c := range counts {
		edges = append(edges, PackageEdge{From: k[0], To: k[1], Count: c})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// importTargetPackage extracts the package name from a "package:name/path"
// or "import:package:name/path" synthetic symbol id; relative/dart: imports
// don't name an external package and are skipped.
func importTargetPackage(symbolID string) string {
	const prefix = "import:"
	s := strings.TrimPrefix(symbolID, prefix)
	if !strings.HasPrefix(s, "package:") {
		return ""
	}
	s = strings.TrimPrefix(s, "package:")
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[:idx]
	}
	return s
}
