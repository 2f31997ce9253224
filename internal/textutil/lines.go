// Package textutil holds the line and whitespace helpers shared by the
// matcher and the patch applier.
package textutil

import (
	"strings"
	"unicode"
)

// SplitLines splits on "\n" only. A trailing newline yields a final empty
// element, and carriage returns stay attached to their line.
func SplitLines(s string) []string {
	return strings.Split(s, "\n")
}

func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func TrimCR(line string) string {
	return strings.TrimSuffix(line, "\r")
}

// DetectCR reports whether most terminated lines end in "\r". The last
// element is ignored since nothing follows it.
func DetectCR(lines []string) bool {
	crlf, lf := 0, 0
	for _, line := range lines[:max(len(lines)-1, 0)] {
		if strings.HasSuffix(line, "\r") {
			crlf++
		} else {
			lf++
		}
	}
	return crlf > lf
}

// StripCR removes every "\r" that precedes a "\n" and returns a function
// mapping offsets in the stripped text back to offsets in s.
func StripCR(s string) (string, func(int) int) {
	if !strings.Contains(s, "\r\n") {
		return s, func(i int) int { return i }
	}

	var b strings.Builder
	b.Grow(len(s))
	var removed []int
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			removed = append(removed, b.Len())
			continue
		}
		b.WriteByte(s[i])
	}

	return b.String(), func(pos int) int {
		n := 0
		for _, r := range removed {
			if r >= pos {
				break
			}
			n++
		}
		return pos + n
	}
}

// ToCRLF converts bare "\n" terminators to "\r\n".
func ToCRLF(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

func NormalizeEOL(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func LeadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// Collapse trims a line and folds every whitespace run into one space.
func Collapse(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// StripSpace removes all whitespace from s.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// LineStart returns the offset of the first byte of the line holding pos.
func LineStart(s string, pos int) int {
	return strings.LastIndexByte(s[:pos], '\n') + 1
}

// LineEnd returns the offset of the "\n" ending the line holding pos, or
// len(s) on the last line.
func LineEnd(s string, pos int) int {
	if i := strings.IndexByte(s[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(s)
}

// LineOffsets returns the starting byte offset of every line of s.
func LineOffsets(s string) []int {
	offsets := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}
