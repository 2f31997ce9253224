package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sokinpui/editstream/internal/edit"
	"github.com/sokinpui/editstream/internal/textutil"
)

func locateIndented(norm, search string) (candidate, bool) {
	want := textutil.SplitLines(search)
	lead, trail := blankEdges(want)
	want = want[lead : len(want)-trail]
	if len(want) == 0 {
		return candidate{}, false
	}

	lines := textutil.SplitLines(norm)
	offsets := textutil.LineOffsets(norm)
	first := textutil.Collapse(want[0])
	for i := 0; i+len(want) <= len(lines); i++ {
		if textutil.Collapse(lines[i]) != first {
			continue
		}
		delta, ok := textutil.UniformIndent(want, lines[i:i+len(want)])
		if !ok {
			continue
		}
		last := i + len(want) - 1
		return candidate{
			span:  edit.Span{Start: offsets[i], End: offsets[last] + len(lines[last])},
			stage: StageIndent,
			delta: delta,
		}, true
	}
	return candidate{}, false
}

type token struct {
	text       string
	start, end int
}

func tokenize(s string) []token {
	var tokens []token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{text: s[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: s[start:], start: start, end: len(s)})
	}
	return tokens
}

func locateTokens(norm, search string) (candidate, bool) {
	want := strings.Fields(search)
	if len(want) == 0 {
		return candidate{}, false
	}

	have := tokenize(norm)
outer:
	for i := 0; i+len(want) <= len(have); i++ {
		for j, w := range want {
			if have[i+j].text != w {
				continue outer
			}
		}
		span := edit.Span{Start: have[i].start, End: have[i+len(want)-1].end}
		return widen(norm, search, span, StageTokens), true
	}
	return candidate{}, false
}

func locateCompact(norm, search string) (candidate, bool) {
	want := textutil.StripSpace(search)
	if want == "" {
		return candidate{}, false
	}

	var b strings.Builder
	var positions []int
	for i := 0; i < len(norm); {
		r, size := utf8.DecodeRuneInString(norm[i:])
		if !unicode.IsSpace(r) {
			b.WriteString(norm[i : i+size])
			for k := 0; k < size; k++ {
				positions = append(positions, i+k)
			}
		}
		i += size
	}

	idx := strings.Index(b.String(), want)
	if idx < 0 {
		return candidate{}, false
	}
	span := edit.Span{Start: positions[idx], End: positions[idx+len(want)-1] + 1}
	return widen(norm, search, span, StageCompact), true
}

// widen grows a token-level span to whole lines where only whitespace lies
// outside it, and records the indentation delta of its first line.
func widen(norm, search string, span edit.Span, stage string) candidate {
	c := candidate{span: span, stage: stage}

	ls := textutil.LineStart(norm, span.Start)
	if strings.TrimSpace(norm[ls:span.Start]) == "" {
		c.span.Start = ls
	} else {
		c.midLine = true
	}

	le := textutil.LineEnd(norm, span.End)
	if strings.TrimSpace(norm[span.End:le]) == "" {
		c.span.End = le
	}

	c.delta = textutil.IndentBetween(textutil.BaseIndent(search), textutil.LeadingWhitespace(norm[ls:]))
	return c
}

func blankEdges(lines []string) (lead, trail int) {
	for lead < len(lines) && textutil.IsBlank(lines[lead]) {
		lead++
	}
	for trail < len(lines)-lead && textutil.IsBlank(lines[len(lines)-1-trail]) {
		trail++
	}
	return lead, trail
}

// trimBlankEdges drops up to lead leading and trail trailing blank lines.
func trimBlankEdges(text string, lead, trail int) string {
	lines := textutil.SplitLines(text)
	for lead > 0 && len(lines) > 0 && textutil.IsBlank(lines[0]) {
		lines = lines[1:]
		lead--
	}
	for trail > 0 && len(lines) > 0 && textutil.IsBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
		trail--
	}
	return textutil.JoinLines(lines)
}
