package edit

import (
	"strings"

	"github.com/sokinpui/editstream/internal/textutil"
)

const (
	searchMarker  = "<<<<<<< SEARCH"
	dividerMarker = "======="
	replaceMarker = ">>>>>>> REPLACE"
)

// HasPairs reports whether text contains at least one SEARCH marker line.
func HasPairs(text string) bool {
	for _, line := range textutil.SplitLines(textutil.NormalizeEOL(text)) {
		if isMarker(line, searchMarker) {
			return true
		}
	}
	return false
}

// ParsePairs extracts SEARCH/REPLACE pairs in order. Markers are matched on
// trimmed lines, so indented or trailing-space markers still count. A pair
// missing its REPLACE marker at the end of text is kept; text outside pairs
// is ignored.
func ParsePairs(text string) []Pair {
	const (
		outside = iota
		inSearch
		inReplace
	)

	var pairs []Pair
	var search, replace []string
	state := outside

	flush := func() {
		pairs = append(pairs, Pair{
			Search:  strings.Join(search, "\n"),
			Replace: strings.Join(replace, "\n"),
		})
		search, replace = nil, nil
	}

	for _, line := range textutil.SplitLines(textutil.NormalizeEOL(text)) {
		switch state {
		case outside:
			if isMarker(line, searchMarker) {
				state = inSearch
			}
		case inSearch:
			if isMarker(line, dividerMarker) {
				state = inReplace
				continue
			}
			search = append(search, line)
		case inReplace:
			if isMarker(line, replaceMarker) {
				flush()
				state = outside
				continue
			}
			if isMarker(line, searchMarker) {
				flush()
				state = inSearch
				continue
			}
			replace = append(replace, line)
		}
	}

	if state == inReplace {
		for len(replace) > 0 && replace[len(replace)-1] == "" {
			replace = replace[:len(replace)-1]
		}
		flush()
	}
	return pairs
}

// FormatPair renders a pair in SEARCH/REPLACE block syntax.
func FormatPair(p Pair) string {
	return searchMarker + "\n" + p.Search + "\n" + dividerMarker + "\n" + p.Replace + "\n" + replaceMarker
}

func isMarker(line, marker string) bool {
	return strings.TrimSpace(line) == marker
}
