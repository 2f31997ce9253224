// Package scanner recognises registered tags in a chunked text stream.
//
// The scanner is a two-state machine, outside or inside one tag. Text
// outside tags passes through, opening and closing tag literals pass
// through, and tag bodies are handed to the tag's OnEnd callback instead of
// being emitted. Chunk boundaries need not line up with tag boundaries.
package scanner

import (
	"regexp"
	"sort"
	"strings"
)

// Tag describes one recognised tag. Only attributes listed in
// AttributeNames are reported to the callbacks. Returning true from OnEnd
// stops the scan.
type Tag struct {
	AttributeNames []string
	OnStart        func(attrs map[string]string)
	OnEnd          func(content string, attrs map[string]string) bool
}

// Registry maps tag names to their descriptors.
type Registry map[string]Tag

var attributePattern = regexp.MustCompile(`([A-Za-z_][\w.:-]*)\s*=\s*"([^"]*)"`)

type Scanner struct {
	tags        Registry
	openPattern *regexp.Regexp

	buffer  string
	emitted int

	active  string
	attrs   map[string]string
	stopped bool
}

func New(tags Registry) *Scanner {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, regexp.QuoteMeta(name))
	}
	// Longer names first so "file_edit" wins over "file".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	s := &Scanner{tags: tags}
	if len(names) > 0 {
		s.openPattern = regexp.MustCompile(`<(` + strings.Join(names, "|") + `)(\s(?:[^>"]|"[^"]*")*)?>`)
	}
	return s
}

// Feed consumes one chunk and returns the fragments to pass through, in
// order. Callbacks fire synchronously while Feed runs.
func (s *Scanner) Feed(chunk string) []string {
	if s.stopped {
		return nil
	}
	s.buffer += chunk

	var out []string
	for !s.stopped {
		if s.active == "" {
			if !s.openTag(&out) {
				break
			}
			continue
		}
		if !s.closeTag(&out) {
			break
		}
	}
	return out
}

func (s *Scanner) openTag(out *[]string) bool {
	var loc []int
	if s.openPattern != nil {
		loc = s.openPattern.FindStringSubmatchIndex(s.buffer)
	}
	if loc == nil {
		if s.emitted < len(s.buffer) {
			*out = append(*out, s.buffer[s.emitted:])
		}
		s.retainPartialOpen()
		return false
	}

	if s.emitted < loc[1] {
		*out = append(*out, s.buffer[s.emitted:loc[1]])
	}

	name := s.buffer[loc[2]:loc[3]]
	var attrText string
	if loc[4] >= 0 {
		attrText = s.buffer[loc[4]:loc[5]]
	}
	tag := s.tags[name]

	s.active = name
	s.attrs = parseAttributes(attrText, tag.AttributeNames)
	s.buffer = s.buffer[loc[1]:]
	s.emitted = 0

	if tag.OnStart != nil {
		tag.OnStart(s.attrs)
	}
	return true
}

func (s *Scanner) closeTag(out *[]string) bool {
	closing := "</" + s.active + ">"
	idx := strings.Index(s.buffer, closing)
	if idx < 0 {
		return false
	}

	content := s.buffer[:idx]
	tag, attrs := s.tags[s.active], s.attrs

	s.buffer = s.buffer[idx+len(closing):]
	s.emitted = 0
	s.active = ""
	s.attrs = nil

	*out = append(*out, closing)
	if tag.OnEnd != nil && tag.OnEnd(content, attrs) {
		s.stopped = true
		s.buffer = ""
	}
	return true
}

// retainPartialOpen keeps the buffer from the earliest "<" that could
// still grow into a registered opening tag. Everything kept has already
// been emitted.
func (s *Scanner) retainPartialOpen() {
	for i := 0; i < len(s.buffer); i++ {
		lt := strings.IndexByte(s.buffer[i:], '<')
		if lt < 0 {
			break
		}
		i += lt
		if s.couldOpen(s.buffer[i:]) {
			s.buffer = s.buffer[i:]
			s.emitted = len(s.buffer)
			return
		}
	}
	s.buffer = ""
	s.emitted = 0
}

// couldOpen reports whether text, starting with "<", is a prefix of an
// opening tag for some registered name.
func (s *Scanner) couldOpen(text string) bool {
	rest := text[1:]
	for name := range s.tags {
		if len(rest) <= len(name) {
			if strings.HasPrefix(name, rest) {
				return true
			}
			continue
		}
		if strings.HasPrefix(rest, name) && isSpace(rest[len(name)]) && unterminated(rest[len(name):]) {
			return true
		}
	}
	return false
}

// unterminated reports whether attrs has no ">" outside a quoted value.
func unterminated(attrs string) bool {
	quoted := false
	for i := 0; i < len(attrs); i++ {
		switch attrs[i] {
		case '"':
			quoted = !quoted
		case '>':
			if !quoted {
				return false
			}
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// Finish ends the stream. It returns an *IncompleteTagError when a tag was
// opened but never closed; its body is discarded.
func (s *Scanner) Finish() error {
	defer s.Reset()
	if s.active == "" || s.stopped {
		return nil
	}
	return &IncompleteTagError{Tag: s.active, Attributes: s.attrs}
}

// Reset discards all buffered text without firing any callback.
func (s *Scanner) Reset() {
	s.buffer = ""
	s.emitted = 0
	s.active = ""
	s.attrs = nil
}

func (s *Scanner) Stopped() bool {
	return s.stopped
}

// Active returns the name of the currently open tag.
func (s *Scanner) Active() (string, bool) {
	return s.active, s.active != ""
}

func parseAttributes(text string, allowed []string) map[string]string {
	attrs := make(map[string]string)
	if text == "" || len(allowed) == 0 {
		return attrs
	}

	keep := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		keep[name] = true
	}

	for _, m := range attributePattern.FindAllStringSubmatch(text, -1) {
		if keep[m[1]] {
			attrs[m[1]] = m[2]
		}
	}
	return attrs
}
