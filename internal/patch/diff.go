package patch

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sokinpui/editstream/internal/textutil"
)

const DefaultContext = 3

// Diff computes a line diff from oldContent to newContent, grouped into
// hunks with the given number of context lines. It returns nil when the
// contents are equal.
func Diff(oldContent, newContent string, context int) *Document {
	if oldContent == newContent {
		return nil
	}

	a, b := textutil.SplitLines(oldContent), textutil.SplitLines(newContent)
	ra, rb := encodeLines(a, b)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(ra, rb, false)

	var ops []Line
	var oldIdx, newIdx []int
	i, j := 0, 0
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		for k := 0; k < n; k++ {
			oldIdx = append(oldIdx, i)
			newIdx = append(newIdx, j)
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, Line{Op: OpContext, Text: textutil.TrimCR(a[i])})
				i++
				j++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, Line{Op: OpRemove, Text: textutil.TrimCR(a[i])})
				i++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, Line{Op: OpAdd, Text: textutil.TrimCR(b[j])})
				j++
			}
		}
	}

	return &Document{Hunks: group(ops, oldIdx, newIdx, context)}
}

// encodeLines maps every distinct line to one rune, skipping the
// surrogate range so the runes survive string conversion.
func encodeLines(a, b []string) ([]rune, []rune) {
	ids := make(map[string]rune)
	encode := func(lines []string) []rune {
		out := make([]rune, len(lines))
		for i, line := range lines {
			r, ok := ids[line]
			if !ok {
				r = rune(len(ids) + 1)
				if r >= 0xD800 {
					r += 0x800
				}
				ids[line] = r
			}
			out[i] = r
		}
		return out
	}
	return encode(a), encode(b)
}

func group(ops []Line, oldIdx, newIdx []int, context int) []Hunk {
	var hunks []Hunk
	for k := 0; k < len(ops); {
		if ops[k].Op == OpContext {
			k++
			continue
		}

		start := max(k-context, 0)
		end := k
		for {
			for end < len(ops) && ops[end].Op != OpContext {
				end++
			}
			next := end
			for next < len(ops) && ops[next].Op == OpContext {
				next++
			}
			if next < len(ops) && next-end <= 2*context {
				end = next
				continue
			}
			end = min(end+context, len(ops))
			break
		}

		h := Hunk{Positioned: true, Lines: append([]Line(nil), ops[start:end]...)}
		h.OldLines, h.NewLines = h.Counts()
		h.OldStart = startLine(oldIdx[start], h.OldLines)
		h.NewStart = startLine(newIdx[start], h.NewLines)
		hunks = append(hunks, h)
		k = end
	}
	return hunks
}
