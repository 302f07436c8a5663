package index

import "strings"

// globMatch reports whether name matches a glob pattern using only `*`
// (any run of characters, possibly empty) and `?` (exactly one character).
// An all-lowercase pattern matches case-insensitively; any uppercase letter
// in the pattern makes the match case-sensitive.
func globMatch(pattern, name string) bool {
	if pattern == strings.ToLower(pattern) {
		pattern = strings.ToLower(pattern)
		name = strings.ToLower(name)
	}
	return globMatchRunes([]rune(pattern), []rune(name))
}

// globMatchRunes is a standard O(len(pattern)*len(name)) DP-free iterative
// matcher with backtracking via explicit star bookkeeping instead of
// recursion, avoiding exponential blowup on repeated stars.
func globMatchRunes(pattern, name []rune) bool {
	pi, ni := 0, 0
	starIdx, matchIdx := -1, -1

	for ni < len(name) {
		if pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == name[ni]) {
			pi++
			ni++
		} else if pi < len(pattern) && pattern[pi] == '*' {
			starIdx = pi
			matchIdx = ni
			pi++
		} else if starIdx != -1 {
			pi = starIdx + 1
			matchIdx++
			ni = matchIdx
		} else {
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// hasGlobChars reports whether pattern contains any wildcard, i.e. is a
// literal name rather than a glob.
func hasGlobChars(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}
