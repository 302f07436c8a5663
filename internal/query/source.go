package query

import (
	"bufio"
	"os"

	"github.com/aemelyanovff/dart-context/internal/index"
)

// readRange returns the source lines spanning r (inclusive, zero-based)
// from path, used by the `source`/`sig` verbs.
func readRange(path string, r index.Range) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		if line >= r.StartLine && line <= r.EndLine {
			lines = append(lines, scanner.Text())
		}
		line++
		if line > r.EndLine {
			break
		}
	}
	return lines, scanner.Err()
}
