package patch

import (
	"sort"

	"github.com/sokinpui/editstream/internal/textutil"
)

// Correct re-anchors every hunk of doc against content and returns a copy
// whose headers carry the real line numbers. Context lines are replaced by
// the lines actually found, so the result applies cleanly with strict
// tools. Hunks come back sorted by position.
func (a *Applier) Correct(content string, doc *Document) (*Document, error) {
	if doc == nil || len(doc.Hunks) == 0 {
		return nil, ErrNoHunks
	}

	type placed struct {
		pos  int
		hunk Hunk
	}

	lines := textutil.SplitLines(content)
	var hunks []placed
	prevEnd := 0
	for i, h := range doc.Hunks {
		near := -1
		switch {
		case h.Positioned:
			near = claimed(h, 0)
		case len(h.before()) > 0:
			near = prevEnd
		}
		pos, _, ok := a.anchor(lines, h, near)
		if !ok {
			return nil, &UnanchorableHunkError{Index: i, Hunk: describe(h)}
		}

		fixed := Hunk{Section: h.Section, Positioned: true, Lines: make([]Line, 0, len(h.Lines))}
		cursor := pos
		for _, l := range h.Lines {
			switch l.Op {
			case OpContext:
				fixed.Lines = append(fixed.Lines, Line{Op: OpContext, Text: textutil.TrimCR(lines[cursor])})
				cursor++
			case OpRemove:
				fixed.Lines = append(fixed.Lines, Line{Op: OpRemove, Text: textutil.TrimCR(lines[cursor])})
				cursor++
			case OpAdd:
				fixed.Lines = append(fixed.Lines, Line{Op: OpAdd, Text: textutil.TrimCR(l.Text)})
			}
		}
		hunks = append(hunks, placed{pos: pos, hunk: fixed})
		prevEnd = cursor
	}

	sort.SliceStable(hunks, func(i, j int) bool { return hunks[i].pos < hunks[j].pos })

	out := &Document{OldName: doc.OldName, NewName: doc.NewName}
	offset := 0
	for _, p := range hunks {
		h := p.hunk
		oldLines, newLines := h.Counts()
		h.OldLines, h.NewLines = oldLines, newLines
		h.OldStart, h.NewStart = startLine(p.pos, oldLines), startLine(p.pos+offset, newLines)
		out.Hunks = append(out.Hunks, h)
		offset += newLines - oldLines
	}
	return out, nil
}

// startLine converts a zero-based line index to a header start. Empty
// ranges name the line before them.
func startLine(pos, count int) int {
	if count == 0 {
		return pos
	}
	return pos + 1
}
