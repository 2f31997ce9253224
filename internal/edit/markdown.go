package edit

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type codeBlock struct {
	hint    string
	lang    string
	content string
}

var (
	pathInHintRegex = regexp.MustCompile("^`([^`\n]+)`")
	filePathRegex   = regexp.MustCompile(`(?m)^\+\+\+ (?:b/)?(?P<path>.*?)(\s|$)`)
)

// ExtractMarkdown reads blocks from markdown: a fenced block preceded by a
// `path` hint carries full content or SEARCH/REPLACE pairs, and a diff
// fence names its file in the "+++ b/" header.
func ExtractMarkdown(source string) ([]Block, error) {
	codeBlocks, err := extractCodeBlocks([]byte(source))
	if err != nil {
		return nil, err
	}

	var blocks []Block
	for _, b := range codeBlocks {
		if b.lang == "diff" || b.lang == "patch" {
			raw := strings.Trim(b.content, "\n")
			path := ExtractPathFromDiff(raw)
			if path == "" {
				path = ExtractPathFromHint(b.hint)
			}
			if path == "" {
				continue
			}
			blocks = append(blocks, Block{Path: path, Kind: KindPatch, Content: raw, Source: "markdown"})
			continue
		}

		path := ExtractPathFromHint(b.hint)
		if path == "" {
			continue
		}
		if HasPairs(b.content) {
			blocks = append(blocks, Block{Path: path, Kind: KindSearchReplace, Pairs: ParsePairs(b.content), Source: "markdown"})
			continue
		}
		blocks = append(blocks, Block{Path: path, Kind: KindContent, Content: b.content, Source: "markdown"})
	}
	return blocks, nil
}

func extractCodeBlocks(source []byte) ([]codeBlock, error) {
	var blocks []codeBlock
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var block codeBlock
		if fenced.Info != nil {
			block.lang = strings.TrimSpace(string(fenced.Info.Text(source)))
		}

		block.content = segmentsText(fenced.Lines(), source)

		if prev := fenced.PreviousSibling(); prev != nil {
			if p, ok := prev.(*ast.Paragraph); ok {
				block.hint = strings.TrimSpace(segmentsText(p.Lines(), source))
			}
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	return blocks, nil
}

func segmentsText(lines *text.Segments, source []byte) string {
	var b bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

func ExtractPathFromHint(hint string) string {
	if match := pathInHintRegex.FindStringSubmatch(strings.TrimSpace(hint)); len(match) > 1 {
		path := strings.TrimSpace(match[1])
		if !strings.Contains(path, " ") {
			return path
		}
	}
	return ""
}

func ExtractPathFromDiff(content string) string {
	if match := filePathRegex.FindStringSubmatch(content); len(match) > 1 {
		path := strings.TrimSpace(match[1])
		if path != "/dev/null" {
			return path
		}
	}
	return ""
}

// HasAllowedExtension reports whether path ends in one of extensions. An
// empty list allows everything.
func HasAllowedExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if ext == e || "."+strings.TrimPrefix(e, ".") == ext {
			return true
		}
	}
	return false
}
