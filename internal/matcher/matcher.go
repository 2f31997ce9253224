// Package matcher locates SEARCH/REPLACE pairs in real file content.
//
// Matching runs in stages, each more tolerant than the last:
//
//   - exact: a literal substring
//   - indent: whole lines equal after one uniform indentation shift
//   - tokens: equal whitespace-separated token streams
//   - compact: equal text once all whitespace is removed
//
// Whatever stage locates the span, the returned Hunk carries the exact
// bytes of the file at that span, and the replacement is re-indented by
// the delta between the search text and the file.
package matcher

import (
	"log/slog"
	"strings"

	"github.com/sokinpui/editstream/internal/edit"
	"github.com/sokinpui/editstream/internal/textutil"
)

const (
	StageExact   = "exact"
	StageIndent  = "indent"
	StageTokens  = "tokens"
	StageCompact = "compact"
)

type Option func(*Matcher)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCompact toggles the whitespace-free last resort stage.
func WithCompact(enabled bool) Option {
	return func(m *Matcher) {
		m.compact = enabled
	}
}

type Matcher struct {
	logger  *slog.Logger
	compact bool
}

func New(opts ...Option) *Matcher {
	m := &Matcher{logger: slog.Default(), compact: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// candidate is a located span in LF-normalized content.
type candidate struct {
	span  edit.Span
	stage string
	delta textutil.Indent
	// midLine is set when the span starts after non-blank text on its line.
	midLine bool
}

// Resolve locates pair in content. The first match in document order of
// the earliest succeeding stage wins.
func (m *Matcher) Resolve(content string, pair edit.Pair) edit.MatchResult {
	search := textutil.NormalizeEOL(pair.Search)
	replace := textutil.NormalizeEOL(pair.Replace)

	if strings.TrimSpace(search) == "" {
		return unmatched(pair, edit.ReasonEmptySearch)
	}
	if search == replace {
		return unmatched(pair, edit.ReasonNoChange)
	}

	norm, toOriginal := textutil.StripCR(content)
	c, ok := m.locate(norm, search)
	if !ok {
		return unmatched(pair, edit.ReasonNotFound)
	}

	repl := c.replacement(search, replace)
	span := c.span
	if repl == "" && isLineStart(norm, span.Start) && span.End < len(norm) && norm[span.End] == '\n' {
		span.End++
	}

	original := norm[span.Start:span.End]
	if original == repl {
		return unmatched(pair, edit.ReasonNoChange)
	}
	if alreadyApplied(norm, span.Start, original, repl) {
		return unmatched(pair, edit.ReasonAlreadyApplied)
	}

	if textutil.DetectCR(textutil.SplitLines(content)) {
		repl = textutil.ToCRLF(repl)
	}

	start, end := toOriginal(span.Start), toOriginal(span.End)
	if c.stage != StageExact {
		m.logger.Debug("Located search text with tolerant match",
			slog.String("stage", c.stage),
			slog.Int("offset", start))
	}

	return edit.MatchResult{
		Pair:  pair,
		Stage: c.stage,
		Hunk: &edit.Hunk{
			Anchor:      edit.Span{Start: start, End: end},
			Original:    content[start:end],
			Replacement: repl,
		},
	}
}

// ResolveAll resolves pairs in order, each against the content produced by
// the matched pairs before it, and returns the final content.
func (m *Matcher) ResolveAll(content string, pairs []edit.Pair) ([]edit.MatchResult, string) {
	results := make([]edit.MatchResult, 0, len(pairs))
	for i, pair := range pairs {
		r := m.Resolve(content, pair)
		if r.Matched() {
			h := r.Hunk
			content = content[:h.Anchor.Start] + h.Replacement + content[h.Anchor.End:]
		} else {
			m.logger.Debug("Search text unmatched",
				slog.Int("pair", i),
				slog.String("reason", string(r.Reason)))
		}
		results = append(results, r)
	}
	return results, content
}

func (m *Matcher) locate(norm, search string) (candidate, bool) {
	if idx := strings.Index(norm, search); idx >= 0 {
		return candidate{span: edit.Span{Start: idx, End: idx + len(search)}, stage: StageExact}, true
	}
	if c, ok := locateIndented(norm, search); ok {
		return c, true
	}
	if c, ok := locateTokens(norm, search); ok {
		return c, true
	}
	if m.compact {
		return locateCompact(norm, search)
	}
	return candidate{}, false
}

func (c candidate) replacement(search, replace string) string {
	switch c.stage {
	case StageExact:
		return replace
	case StageIndent:
		lead, trail := blankEdges(textutil.SplitLines(search))
		return c.delta.Apply(trimBlankEdges(replace, lead, trail))
	}

	replace = strings.Trim(replace, "\n")
	if !c.midLine {
		return c.delta.Apply(replace)
	}
	lines := textutil.SplitLines(replace)
	lines[0] = strings.TrimLeft(lines[0], " \t")
	for i := 1; i < len(lines); i++ {
		lines[i] = c.delta.Line(lines[i])
	}
	return textutil.JoinLines(lines)
}

func unmatched(pair edit.Pair, reason edit.Reason) edit.MatchResult {
	return edit.MatchResult{Pair: pair, Reason: reason}
}

// alreadyApplied reports whether the replacement already surrounds the
// matched original text, meaning the pair was applied before.
func alreadyApplied(norm string, start int, original, repl string) bool {
	for k := 0; k < len(repl); {
		i := strings.Index(repl[k:], original)
		if i < 0 {
			return false
		}
		from := start - (k + i)
		if from >= 0 && strings.HasPrefix(norm[from:], repl) {
			return true
		}
		k += i + 1
	}
	return false
}

func isLineStart(s string, pos int) bool {
	return pos == 0 || s[pos-1] == '\n'
}
