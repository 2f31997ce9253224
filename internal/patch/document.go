// Package patch parses, renders, generates and applies unified diffs.
//
// Hunk headers are treated as hints only. Every hunk is anchored by its
// context and removed lines against the content being patched, so patches
// with wrong line numbers, retyped context lines or reordered hunks still
// apply, and patches that cannot be anchored are rejected whole.
package patch

import (
	"bytes"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/sokinpui/editstream/internal/textutil"
)

type Op byte

const (
	OpContext Op = ' '
	OpRemove  Op = '-'
	OpAdd     Op = '+'
)

type Line struct {
	Op   Op
	Text string
}

// Hunk is one parsed hunk. Positioned is false when the header carried no
// usable line numbers.
type Hunk struct {
	OldStart   int
	OldLines   int
	NewStart   int
	NewLines   int
	Section    string
	Positioned bool
	Lines      []Line
}

type Document struct {
	OldName string
	NewName string
	Hunks   []Hunk
}

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// Parse reads a unified diff leniently. File headers are optional, headers
// without line numbers are accepted, "\ No newline" markers are skipped,
// and lines missing their prefix count as context. Bare empty lines at the
// end of a hunk are dropped. Change lines with no
// hunk header at all form a single unpositioned hunk.
func Parse(text string) (*Document, error) {
	lines := textutil.SplitLines(textutil.NormalizeEOL(text))
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	doc := &Document{}
	cur, bare := -1, 0
	closeHunk := func() {
		if cur >= 0 {
			h := &doc.Hunks[cur]
			h.Lines = h.Lines[:len(h.Lines)-bare]
		}
		cur, bare = -1, 0
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case isHeaderPair(lines, i):
			closeHunk()
			doc.OldName = fileName(line[4:])
			doc.NewName = fileName(lines[i+1][4:])
			i++
		case strings.HasPrefix(line, "@@"):
			closeHunk()
			doc.Hunks = append(doc.Hunks, parseHeader(line))
			cur = len(doc.Hunks) - 1
		case strings.HasPrefix(line, "diff --git "):
			closeHunk()
		case cur < 0:
		default:
			l, ok := parseBodyLine(line)
			if !ok {
				continue
			}
			if line == "" {
				bare++
			} else {
				bare = 0
			}
			doc.Hunks[cur].Lines = append(doc.Hunks[cur].Lines, l)
		}
	}
	closeHunk()

	if len(doc.Hunks) == 0 {
		doc.Hunks = headerless(lines)
	}
	doc.Hunks = dropEmpty(doc.Hunks)
	if len(doc.Hunks) == 0 {
		return nil, ErrNoHunks
	}
	return doc, nil
}

func parseHeader(line string) Hunk {
	m := hunkHeaderPattern.FindStringSubmatch(strings.TrimRight(line, " \t"))
	if m == nil {
		section := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "@"))
		return Hunk{Section: section}
	}
	return Hunk{
		OldStart:   atoi(m[1]),
		OldLines:   count(m[2]),
		NewStart:   atoi(m[3]),
		NewLines:   count(m[4]),
		Section:    m[5],
		Positioned: true,
	}
}

func parseBodyLine(line string) (Line, bool) {
	if line == "" {
		return Line{Op: OpContext}, true
	}
	switch line[0] {
	case ' ':
		return Line{Op: OpContext, Text: line[1:]}, true
	case '-':
		return Line{Op: OpRemove, Text: line[1:]}, true
	case '+':
		return Line{Op: OpAdd, Text: line[1:]}, true
	case '\\':
		return Line{}, false
	}
	return Line{Op: OpContext, Text: line}, true
}

func headerless(lines []string) []Hunk {
	var h Hunk
	changed := false
	for i := 0; i < len(lines); i++ {
		if isHeaderPair(lines, i) {
			i++
			continue
		}
		l, ok := parseBodyLine(lines[i])
		if !ok {
			continue
		}
		changed = changed || l.Op != OpContext
		h.Lines = append(h.Lines, l)
	}
	if !changed {
		return nil
	}
	return []Hunk{h}
}

func dropEmpty(hunks []Hunk) []Hunk {
	out := hunks[:0]
	for _, h := range hunks {
		for _, l := range h.Lines {
			if l.Op != OpContext {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

func isHeaderPair(lines []string, i int) bool {
	return i+1 < len(lines) &&
		strings.HasPrefix(lines[i], "--- ") &&
		strings.HasPrefix(lines[i+1], "+++ ")
}

func fileName(s string) string {
	if tab := strings.IndexByte(s, '\t'); tab >= 0 {
		s = s[:tab]
	}
	return strings.TrimSpace(s)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func count(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}

// Counts returns the old and new line counts implied by the body.
func (h Hunk) Counts() (oldLines, newLines int) {
	for _, l := range h.Lines {
		switch l.Op {
		case OpContext:
			oldLines++
			newLines++
		case OpRemove:
			oldLines++
		case OpAdd:
			newLines++
		}
	}
	return oldLines, newLines
}

// before returns the context and removed lines, the text a hunk must find.
func (h Hunk) before() []Line {
	var out []Line
	for _, l := range h.Lines {
		if l.Op != OpAdd {
			out = append(out, Line{Op: l.Op, Text: textutil.TrimCR(l.Text)})
		}
	}
	return out
}

// Overridden in tests.
var (
	printFileDiff = diff.PrintFileDiff
	printHunks    = diff.PrintHunks
)

// String renders the document. Header counts are taken from the hunk
// bodies so the output always parses strictly. A rendering failure is
// logged and yields an empty string.
func (d *Document) String() string {
	hunks := make([]*diff.Hunk, 0, len(d.Hunks))
	for _, h := range d.Hunks {
		oldLines, newLines := h.Counts()
		var body bytes.Buffer
		for _, l := range h.Lines {
			body.WriteByte(byte(l.Op))
			body.WriteString(textutil.TrimCR(l.Text))
			body.WriteByte('\n')
		}
		hunks = append(hunks, &diff.Hunk{
			OrigStartLine: int32(h.OldStart),
			OrigLines:     int32(oldLines),
			NewStartLine:  int32(h.NewStart),
			NewLines:      int32(newLines),
			Section:       h.Section,
			Body:          body.Bytes(),
		})
	}

	var out []byte
	var err error
	if d.OldName != "" || d.NewName != "" {
		out, err = printFileDiff(&diff.FileDiff{OrigName: d.OldName, NewName: d.NewName, Hunks: hunks})
	} else {
		out, err = printHunks(hunks)
	}
	if err != nil {
		slog.Warn("Failed to render diff", slog.String("file", d.NewName), slog.Any("error", err))
		return ""
	}
	return string(out)
}
