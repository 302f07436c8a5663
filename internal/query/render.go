package query

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/aemelyanovff/dart-context/internal/index"
)

// RenderText writes res as human-readable text to w, grounded on the
// teacher's per-result-type formatXText functions.
func RenderText(w io.Writer, res Result) {
	switch v := res.(type) {
	case DefinitionResult:
		fmt.Fprintf(w, "%s:%d:%d\t%s\n", v.Occurrence.File, v.Occurrence.Range.StartLine, v.Occurrence.Range.StartCol, v.Symbol)
	case ReferencesResult:
		for _, occ := range v.Occurrences {
			fmt.Fprintf(w, "%s:%d:%d\n", occ.File, occ.Range.StartLine, occ.Range.StartCol)
		}
	case AggregatedReferencesResult:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PACKAGE\tFILE\tLINE\tCOL")
		for _, hit := range v.Hits {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", hit.PackageName, hit.Occurrence.File, hit.Occurrence.Range.StartLine, hit.Occurrence.Range.StartCol)
		}
		tw.Flush()
	case MembersResult:
		renderSymbolTable(w, v.Members)
	case HierarchyResult:
		renderHierarchy(w, v.Root, 0)
	case SourceResult:
		for _, line := range v.Lines {
			fmt.Fprintln(w, line)
		}
	case SearchResult:
		renderSymbolTable(w, v.Symbols)
	case GrepResult:
		for _, m := range v.Matches {
			for _, b := range m.Before {
				fmt.Fprintf(w, "%s-%s\n", m.File, b)
			}
			fmt.Fprintf(w, "%s:%d:%s\n", m.File, m.LineNumber, m.Line)
			for _, a := range m.After {
				fmt.Fprintf(w, "%s-%s\n", m.File, a)
			}
		}
	case CallGraphResult:
		renderSymbolTable(w, v.Edges)
	case PackageGraphResult:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FROM\tTO\tCOUNT")
		for _, e := range v.Edges {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", e.From, e.To, e.Count)
		}
		tw.Flush()
	case StatsResult:
		fmt.Fprintf(w, "Files: %d\nSymbols: %d\nDefinitions: %d\nReferences: %d\n",
			v.Stats.Files, v.Stats.Symbols, v.Stats.Definitions, v.Stats.References)
		if len(v.PerFile) > 0 {
			fmt.Fprintln(w, "\nPer file:")
			paths := make([]string, 0, len(v.PerFile))
			for p := range v.PerFile {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "  FILE\tSYMBOLS\tREFERENCES")
			for _, p := range paths {
				fs := v.PerFile[p]
				fmt.Fprintf(tw, "  %s\t%d\t%d\n", p, fs.Symbols, fs.References)
			}
			tw.Flush()
		}
	case FilesResult:
		for _, f := range v.Files {
			fmt.Fprintln(w, f)
		}
	case PipelineResult:
		if v.Final != nil {
			RenderText(w, v.Final)
		}
	case NotFoundResult:
		fmt.Fprintf(w, "not found: %s\n", v.Query)
	case ErrorResult:
		fmt.Fprintf(w, "error: %s\n", v.Message)
	default:
		fmt.Fprintf(w, "unsupported result type %T\n", v)
	}
}

func renderSymbolTable(w io.Writer, symbols []index.SymbolInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tNAME\tKIND")
	for _, s := range symbols {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Symbol, s.DisplayName, s.Kind)
	}
	tw.Flush()
}

func renderHierarchy(w io.Writer, node HierarchyNode, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(w, "%s%s (%s)\n", indent, node.Symbol.DisplayName, node.Symbol.Kind)
	for _, up := range node.Up {
		renderHierarchy(w, up, depth+1)
	}
	for _, down := range node.Down {
		renderHierarchy(w, down, depth+1)
	}
}
