package patch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sokinpui/editstream/internal/edit"
	"github.com/sokinpui/editstream/internal/textutil"
)

const (
	DefaultWindow = 50
	DefaultFuzz   = 2
)

type mode int

const (
	modeExact mode = iota
	modeLoose
	modeFuzzy
)

func (m mode) String() string {
	return [...]string{"exact", "loose", "fuzzy"}[m]
}

type Option func(*Applier)

// WithWindow sets how many lines either side of a hunk's claimed position
// are searched before the whole document is scanned.
func WithWindow(lines int) Option {
	return func(a *Applier) {
		if lines >= 0 {
			a.window = lines
		}
	}
}

// WithFuzz sets how many context lines of a hunk may mismatch.
func WithFuzz(lines int) Option {
	return func(a *Applier) {
		if lines >= 0 {
			a.fuzz = lines
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

type Applier struct {
	window int
	fuzz   int
	logger *slog.Logger
}

func NewApplier(opts ...Option) *Applier {
	a := &Applier{window: DefaultWindow, fuzz: DefaultFuzz, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply parses patchText and applies it with default settings.
func Apply(content, patchText string) (string, error) {
	doc, err := Parse(patchText)
	if err != nil {
		return "", err
	}
	return NewApplier().Apply(content, doc)
}

// Apply applies every hunk of doc in order, each anchored against the
// content produced by the hunks before it. If any hunk cannot be anchored
// the call fails and content is not modified.
func (a *Applier) Apply(content string, doc *Document) (string, error) {
	if doc == nil || len(doc.Hunks) == 0 {
		return "", ErrNoHunks
	}

	lines := textutil.SplitLines(content)
	cr := textutil.DetectCR(lines)
	offset := 0
	for i, h := range doc.Hunks {
		pos, m, ok := a.anchor(lines, h, claimed(h, offset))
		if !ok {
			return "", &UnanchorableHunkError{Index: i, Hunk: describe(h)}
		}

		var delta textutil.Indent
		if m != modeExact {
			delta = indentDelta(lines, pos, h)
			a.logger.Debug("Anchored hunk with tolerant match",
				slog.Int("hunk", i+1),
				slog.String("mode", m.String()),
				slog.Int("line", pos+1))
		}

		oldLines, newLines := h.Counts()
		lines = splice(lines, pos, h, cr, delta)
		offset += newLines - oldLines
	}
	return textutil.JoinLines(lines), nil
}

// ApplyHunks applies pre-resolved hunks in order. Each hunk's original text
// is located at the occurrence nearest its anchor in the current content.
func (a *Applier) ApplyHunks(content string, hunks []edit.Hunk) (string, error) {
	for i, h := range hunks {
		pos, ok := nearestOccurrence(content, h.Original, h.Anchor.Start)
		if !ok {
			return "", &UnanchorableHunkError{Index: i, Hunk: preview(h.Original)}
		}
		if pos != h.Anchor.Start {
			a.logger.Debug("Hunk moved from its anchor",
				slog.Int("hunk", i+1),
				slog.Int("anchor", h.Anchor.Start),
				slog.Int("offset", pos))
		}
		content = content[:pos] + h.Replacement + content[pos+len(h.Original):]
	}
	return content, nil
}

func claimed(h Hunk, offset int) int {
	if !h.Positioned {
		return -1
	}
	if oldLines, _ := h.Counts(); oldLines == 0 {
		return h.OldStart + offset
	}
	return h.OldStart - 1 + offset
}

// anchor finds the line index where h's context and removed lines start.
func (a *Applier) anchor(lines []string, h Hunk, near int) (int, mode, bool) {
	image := h.before()
	if len(image) == 0 {
		if near < 0 {
			return 0, modeExact, false
		}
		limit := len(lines)
		if limit > 0 && lines[limit-1] == "" {
			limit--
		}
		return min(max(near, 0), limit), modeExact, true
	}

	budget := a.budget(image)
	for _, m := range []mode{modeExact, modeLoose, modeFuzzy} {
		if m == modeFuzzy && budget == 0 {
			break
		}
		if pos, ok := a.search(lines, image, near, m, budget); ok {
			return pos, m, true
		}
	}
	return 0, modeExact, false
}

// budget is the number of context lines allowed to mismatch. Hunks with no
// removed lines get a tighter budget since context is their only anchor.
func (a *Applier) budget(image []Line) int {
	context, removed := 0, 0
	for _, l := range image {
		if l.Op == OpRemove {
			removed++
		} else {
			context++
		}
	}
	if removed == 0 {
		return max(min(a.fuzz, (context-1)/2), 0)
	}
	return max(min(a.fuzz, context-1), 0)
}

func (a *Applier) search(lines []string, image []Line, near int, m mode, budget int) (int, bool) {
	last := len(lines) - len(image)
	if last < 0 {
		return 0, false
	}

	if near >= 0 {
		for d := 0; d <= a.window; d++ {
			if p := near - d; p >= 0 && p <= last && matchAt(lines, p, image, m, budget) {
				return p, true
			}
			if p := near + d; d > 0 && p >= 0 && p <= last && matchAt(lines, p, image, m, budget) {
				return p, true
			}
		}
	}

	for p := 0; p <= last; p++ {
		if matchAt(lines, p, image, m, budget) {
			return p, true
		}
	}
	return 0, false
}

func matchAt(lines []string, pos int, image []Line, m mode, budget int) bool {
	mismatched, matched := 0, 0
	for j, l := range image {
		have := textutil.TrimCR(lines[pos+j])
		switch m {
		case modeExact:
			if have != l.Text {
				return false
			}
		case modeLoose:
			if textutil.Collapse(have) != textutil.Collapse(l.Text) {
				return false
			}
		case modeFuzzy:
			if textutil.Collapse(have) == textutil.Collapse(l.Text) {
				matched++
				continue
			}
			if l.Op == OpRemove {
				return false
			}
			if mismatched++; mismatched > budget {
				return false
			}
		}
	}
	return m != modeFuzzy || matched > mismatched
}

// indentDelta returns the uniform indentation shift between the hunk's
// lines and the file at pos, if there is one.
func indentDelta(lines []string, pos int, h Hunk) textutil.Indent {
	image := h.before()
	want := make([]string, len(image))
	for i, l := range image {
		want[i] = l.Text
	}
	delta, ok := textutil.UniformShift(want, lines[pos:pos+len(image)])
	if !ok {
		return textutil.Indent{}
	}
	return delta
}

// splice rewrites lines at pos. Context lines are kept exactly as they are
// in lines, never copied from the hunk.
func splice(lines []string, pos int, h Hunk, cr bool, delta textutil.Indent) []string {
	out := make([]string, 0, len(lines)+len(h.Lines))
	out = append(out, lines[:pos]...)

	cursor := pos
	lastAdded := false
	for _, l := range h.Lines {
		switch l.Op {
		case OpContext:
			out = append(out, lines[cursor])
			cursor++
			lastAdded = false
		case OpRemove:
			cursor++
		case OpAdd:
			text := delta.Line(textutil.TrimCR(l.Text))
			if cr {
				text += "\r"
			}
			out = append(out, text)
			lastAdded = true
		}
	}

	tail := lines[cursor:]
	if len(tail) == 0 && lastAdded {
		out[len(out)-1] = textutil.TrimCR(out[len(out)-1])
	}
	return append(out, tail...)
}

func nearestOccurrence(content, text string, near int) (int, bool) {
	if text == "" {
		return min(max(near, 0), len(content)), true
	}

	best, found := 0, false
	for from := 0; from <= len(content)-len(text); {
		i := strings.Index(content[from:], text)
		if i < 0 {
			break
		}
		p := from + i
		if !found || abs(p-near) < abs(best-near) {
			best, found = p, true
		}
		if p > near {
			break
		}
		from = p + 1
	}
	return best, found
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func describe(h Hunk) string {
	if h.Positioned {
		oldLines, newLines := h.Counts()
		return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, oldLines, h.NewStart, newLines)
	}
	for _, l := range h.Lines {
		if l.Op != OpAdd {
			return preview(l.Text)
		}
	}
	return "unpositioned insertion"
}

func preview(s string) string {
	s = strings.TrimSpace(textutil.SplitLines(s)[0])
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}
