package textutil

import "strings"

// Indent is a uniform change of leading whitespace: Remove is stripped
// from the front of a line, then Add is prepended.
type Indent struct {
	Remove string
	Add    string
}

func (d Indent) IsZero() bool {
	return d.Remove == "" && d.Add == ""
}

// IndentBetween returns the delta that turns indentation from into to.
func IndentBetween(from, to string) Indent {
	switch {
	case from == to:
		return Indent{}
	case strings.HasSuffix(to, from):
		return Indent{Add: to[:len(to)-len(from)]}
	case strings.HasSuffix(from, to):
		return Indent{Remove: from[:len(from)-len(to)]}
	default:
		return Indent{Remove: from, Add: to}
	}
}

// Line applies the delta to one line. Blank lines are left alone. A line
// indented less than Remove loses all of its leading whitespace.
func (d Indent) Line(line string) string {
	if d.IsZero() || IsBlank(line) {
		return line
	}
	if d.Remove != "" {
		if strings.HasPrefix(line, d.Remove) {
			line = line[len(d.Remove):]
		} else {
			line = strings.TrimLeft(line, " \t")
		}
	}
	return d.Add + line
}

// Apply applies the delta to every line of text.
func (d Indent) Apply(text string) string {
	if d.IsZero() {
		return text
	}
	lines := SplitLines(text)
	for i, line := range lines {
		lines[i] = d.Line(line)
	}
	return JoinLines(lines)
}

// UniformIndent reports whether every non-blank line of want equals the
// corresponding line of have after one shared indentation delta. Blank
// lines match blank lines only. Trailing whitespace is ignored.
func UniformIndent(want, have []string) (Indent, bool) {
	if len(want) != len(have) {
		return Indent{}, false
	}

	var delta Indent
	seen := false
	for i := range want {
		w := strings.TrimRight(want[i], " \t\r")
		h := strings.TrimRight(have[i], " \t\r")
		if w == "" || h == "" {
			if w != h {
				return Indent{}, false
			}
			continue
		}

		wi, hi := LeadingWhitespace(w), LeadingWhitespace(h)
		if w[len(wi):] != h[len(hi):] {
			return Indent{}, false
		}

		d := IndentBetween(wi, hi)
		if !seen {
			delta, seen = d, true
			continue
		}
		if d != delta {
			return Indent{}, false
		}
	}
	return delta, seen
}

// BaseIndent returns the leading whitespace of the first non-blank line.
func BaseIndent(text string) string {
	for _, line := range SplitLines(text) {
		if !IsBlank(line) {
			return LeadingWhitespace(line)
		}
	}
	return ""
}

// UniformShift is like UniformIndent but compares indentation only, for
// lines already known to match once whitespace is ignored.
func UniformShift(want, have []string) (Indent, bool) {
	if len(want) != len(have) {
		return Indent{}, false
	}

	var delta Indent
	seen := false
	for i := range want {
		if IsBlank(want[i]) || IsBlank(have[i]) {
			continue
		}
		d := IndentBetween(LeadingWhitespace(want[i]), LeadingWhitespace(have[i]))
		if !seen {
			delta, seen = d, true
			continue
		}
		if d != delta {
			return Indent{}, false
		}
	}
	return delta, seen
}
