package index

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// GrepMatch is a single line hit, with optional before/after context lines.
type GrepMatch struct {
	File        string
	LineNumber  int // one-based
	Line        string
	Before      []string
	After       []string
	OnlyMatched string // set when onlyMatching is requested
}

// GrepOptions configures Index.Grep. Pattern is always a regular
// expression; glob-style patterns are the caller's concern (the query
// layer translates `find`-style globs before reaching here only for
// findSymbols, never for grep).
type GrepOptions struct {
	Pattern      string
	PathFilter   string // substring match against the relative path
	IncludeGlob  string
	ExcludeGlob  string
	LinesBefore  int
	LinesAfter   int
	InvertMatch  bool
	MaxPerFile   int // 0 means unlimited
	Multiline    bool
	OnlyMatching bool
}

// Grep scans the files recorded in the index (read from SourceRoot, not
// from the in-memory facts) for lines matching Pattern. ExcludeGlob always
// takes precedence over IncludeGlob. A file is fully scanned even once
// MaxPerFile is reached; there is no early-exit flag exposed.
func (idx *Index) Grep(opts GrepOptions) ([]GrepMatch, error) {
	flags := ""
	if opts.Multiline {
		flags = "(?s)"
	}
	re, err := regexp.Compile(flags + opts.Pattern)
	if err != nil {
		return nil, &MalformedQueryError{Query: opts.Pattern, Reason: err.Error()}
	}

	paths := idx.Files()
	var out []GrepMatch
	for _, path := range paths {
		if opts.PathFilter != "" && !strings.Contains(path, opts.PathFilter) {
			continue
		}
		if opts.ExcludeGlob != "" && globMatch(opts.ExcludeGlob, path) {
			continue
		}
		if opts.IncludeGlob != "" && !globMatch(opts.IncludeGlob, path) {
			continue
		}
		matches, err := grepFile(filepath.Join(idx.SourceRoot, path), path, re, opts)
		if err != nil {
			continue // unreadable file: skip it, do not abort the scan
		}
		out = append(out, matches...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].LineNumber < out[j].LineNumber
	})
	return out, nil
}

func grepFile(absPath, relPath string, re *regexp.Regexp, opts GrepOptions) ([]GrepMatch, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	var out []GrepMatch
	count := 0
	for i, line := range lines {
		hit := re.MatchString(line)
		if opts.InvertMatch {
			hit = !hit
		}
		if !hit {
			continue
		}
		if opts.MaxPerFile > 0 && count >= opts.MaxPerFile {
			continue
		}
		count++

		m := GrepMatch{File: relPath, LineNumber: i + 1, Line: line}
		if opts.OnlyMatching && !opts.InvertMatch {
			if loc := re.FindString(line); loc != "" {
				m.OnlyMatched = loc
			}
		}
		if opts.LinesBefore > 0 {
			start := i - opts.LinesBefore
			if start < 0 {
				start = 0
			}
			m.Before = append(m.Before, lines[start:i]...)
		}
		if opts.LinesAfter > 0 {
			end := i + 1 + opts.LinesAfter
			if end > len(lines) {
				end = len(lines)
			}
			m.After = append(m.After, lines[i+1:end]...)
		}
		out = append(out, m)
	}
	return out, nil
}
