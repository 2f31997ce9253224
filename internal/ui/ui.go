// Package ui renders run summaries and diff previews for the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/sokinpui/editstream/internal/patch"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	createdStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	unchangedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	deletedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
)

type Kind int

const (
	KindCreated Kind = iota
	KindModified
	KindUnchanged
	KindWarning
	KindRemoved
	KindFailed
)

func (k Kind) style() lipgloss.Style {
	switch k {
	case KindCreated:
		return createdStyle
	case KindModified:
		return successStyle
	case KindUnchanged:
		return unchangedStyle
	case KindWarning:
		return warningStyle
	case KindRemoved:
		return deletedStyle
	default:
		return errorStyle
	}
}

func Header(msg string) string {
	if msg == "" {
		return ""
	}
	return headerStyle.Render(msg) + "\n\n"
}

// List renders a titled list, or nothing when items is empty.
func List(title string, k Kind, items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(k.style().Render(title) + "\n")
	for _, item := range items {
		fmt.Fprintf(&b, "  %s\n", item)
	}
	return b.String()
}

var (
	fileColor   = color.New(color.Bold)
	hunkColor   = color.New(color.FgCyan)
	addColor    = color.New(color.FgGreen)
	removeColor = color.New(color.FgRed)
)

// Diff renders doc as a colored unified diff.
func Diff(doc *patch.Document) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder
	for _, line := range strings.SplitAfter(doc.String(), "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "--- "), strings.HasPrefix(text, "+++ "):
			b.WriteString(fileColor.Sprint(text))
		case strings.HasPrefix(text, "@@"):
			b.WriteString(hunkColor.Sprint(text))
		case strings.HasPrefix(text, "+"):
			b.WriteString(addColor.Sprint(text))
		case strings.HasPrefix(text, "-"):
			b.WriteString(removeColor.Sprint(text))
		default:
			b.WriteString(text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
