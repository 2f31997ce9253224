package edit

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	fencePattern    = regexp.MustCompile("^\\s*```[^\\n`]*\\n([\\s\\S]*?)\\n?```\\s*$")
	lazyEditPattern = regexp.MustCompile(`(?i)^\s*(//|#|/\*|<!--|--|\{/\*)\s*\.{3}.*\b(existing|rest of|remaining|unchanged|keep|same as)\b`)
)

// CleanContent strips one wrapping markdown fence and the single newline
// that usually follows an opening tag.
func CleanContent(content string) string {
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		content = m[1]
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
	}
	if strings.HasPrefix(content, "\r\n") {
		return content[2:]
	}
	return strings.TrimPrefix(content, "\n")
}

// HasLazyEdit reports whether content contains an elision placeholder such
// as "// ... existing code ...". Markdown files are exempt.
func HasLazyEdit(path, content string) bool {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".md" || ext == ".mdx" {
		return false
	}
	for _, line := range strings.Split(content, "\n") {
		if lazyEditPattern.MatchString(line) {
			return true
		}
	}
	return false
}
