package query

import (
	"strings"

	"github.com/aemelyanovff/dart-context/internal/index"
)

var knownVerbs = map[string]Verb{
	"def": VerbDef, "refs": VerbRefs, "members": VerbMembers, "impls": VerbImpls,
	"supertypes": VerbSupertypes, "subtypes": VerbSubtypes, "hierarchy": VerbHierarchy,
	"source": VerbSource, "sig": VerbSig, "callers": VerbCallers, "calls": VerbCalls,
	"find": VerbFind, "grep": VerbGrep, "files": VerbFiles, "stats": VerbStats,
	"deps": VerbDeps,
}

// Parse tokenizes and parses a query string into a Pipeline. It returns a
// *index.MalformedQueryError (not a generic error) on any grammar
// violation, so the executor can surface it directly as an ErrorResult.
func Parse(text string) (Pipeline, error) {
	raw := text
	segments := splitPipe(text)
	if len(segments) == 0 {
		return Pipeline{}, &index.MalformedQueryError{Query: raw, Reason: "empty query"}
	}

	stages := make([]Stage, 0, len(segments))
	for _, seg := range segments {
		stage, err := parseStage(strings.TrimSpace(seg))
		if err != nil {
			return Pipeline{}, err
		}
		stages = append(stages, stage)
	}
	return Pipeline{Stages: stages, Raw: raw}, nil
}

// splitPipe splits on unquoted '|' characters.
func splitPipe(text string) []string {
	var segments []string
	var cur strings.Builder
	inQuote := false
	for _, r := range text {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == '|' && !inQuote:
			segments = append(segments, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	segments = append(segments, cur.String())
	return segments
}

func parseStage(seg string) (Stage, error) {
	tokens := tokenize(seg)
	if len(tokens) == 0 {
		return Stage{}, &index.MalformedQueryError{Query: seg, Reason: "empty stage"}
	}

	verb, ok := knownVerbs[tokens[0]]
	if !ok {
		return Stage{}, &index.MalformedQueryError{Query: seg, Reason: "unknown verb " + tokens[0]}
	}

	stage := Stage{Verb: verb}
	for _, tok := range tokens[1:] {
		if k, v, isFilter := splitFilter(tok); isFilter {
			if k != "kind" && k != "in" {
				return Stage{}, &index.MalformedQueryError{Query: seg, Reason: "unknown filter " + k}
			}
			stage.Filters = append(stage.Filters, Filter{Kind: k, Value: v})
			continue
		}
		stage.Args = append(stage.Args, tok)
	}
	return stage, nil
}

// splitFilter recognizes "kind:<value>" / "in:<value>" tokens: a token is a
// filter only when the text before its first ':' is exactly "kind" or
// "in"; any other token, with or without ':', is left as an argument.
func splitFilter(tok string) (key, value string, ok bool) {
	idx := strings.Index(tok, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = tok[:idx]
	if key != "kind" && key != "in" {
		return "", "", false
	}
	return key, tok[idx+1:], true
}

// tokenize splits a stage on space characters (tabs and other whitespace
// stay inside a token), honoring double-quoted spans as a
// single token (quotes stripped).
func tokenize(seg string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range seg {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
