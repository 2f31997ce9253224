package patch

// Reverse returns a document that undoes d: additions become removals,
// removals become additions, and old and new ranges swap.
func (d *Document) Reverse() *Document {
	out := &Document{OldName: d.NewName, NewName: d.OldName, Hunks: make([]Hunk, 0, len(d.Hunks))}
	for _, h := range d.Hunks {
		r := Hunk{
			OldStart:   h.NewStart,
			OldLines:   h.NewLines,
			NewStart:   h.OldStart,
			NewLines:   h.OldLines,
			Section:    h.Section,
			Positioned: h.Positioned,
			Lines:      make([]Line, len(h.Lines)),
		}
		for i, l := range h.Lines {
			r.Lines[i] = Line{Op: reverseOp(l.Op), Text: l.Text}
		}
		out.Hunks = append(out.Hunks, r)
	}
	return out
}

func reverseOp(op Op) Op {
	switch op {
	case OpAdd:
		return OpRemove
	case OpRemove:
		return OpAdd
	}
	return op
}
