package edit

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/editstream/internal/scanner"
)

func TestParsePairs(t *testing.T) {
	text := "<<<<<<< SEARCH\nfoo()\n=======\nbar()\n>>>>>>> REPLACE\n\n" +
		"<<<<<<< SEARCH\n  a\n  b\n=======\n  c\n>>>>>>> REPLACE\n"

	pairs := ParsePairs(text)

	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{Search: "foo()", Replace: "bar()"}, pairs[0])
	assert.Equal(t, Pair{Search: "  a\n  b", Replace: "  c"}, pairs[1])
}

func TestParsePairsLenient(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Pair
	}{
		{
			name: "crlf",
			text: "<<<<<<< SEARCH\r\nx\r\n=======\r\ny\r\n>>>>>>> REPLACE\r\n",
			want: []Pair{{Search: "x", Replace: "y"}},
		},
		{
			name: "indented markers",
			text: "  <<<<<<< SEARCH \nx\n =======\ny\n>>>>>>> REPLACE",
			want: []Pair{{Search: "x", Replace: "y"}},
		},
		{
			name: "missing final marker",
			text: "<<<<<<< SEARCH\nx\n=======\ny\n\n",
			want: []Pair{{Search: "x", Replace: "y"}},
		},
		{
			name: "empty replace",
			text: "<<<<<<< SEARCH\nx\n=======\n>>>>>>> REPLACE",
			want: []Pair{{Search: "x", Replace: ""}},
		},
		{
			name: "no divider",
			text: "<<<<<<< SEARCH\nx\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePairs(tt.text))
		})
	}
}

func TestFormatPairRoundTrip(t *testing.T) {
	p := Pair{Search: "a\n\tb", Replace: "c"}
	assert.Equal(t, []Pair{p}, ParsePairs(FormatPair(p)))
	assert.True(t, HasPairs(FormatPair(p)))
}

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "package a\n", CleanContent("\npackage a\n"))
	assert.Equal(t, "package a\n", CleanContent("\n```go\npackage a\n```\n"))
	assert.Equal(t, "x\r\n", CleanContent("\r\nx\r\n"))
	assert.Equal(t, "no fence", CleanContent("no fence"))
}

func TestHasLazyEdit(t *testing.T) {
	assert.True(t, HasLazyEdit("a.go", "func a() {}\n// ... existing code ...\n"))
	assert.True(t, HasLazyEdit("a.py", "    # ... rest of the function\n"))
	assert.False(t, HasLazyEdit("a.go", "x := y // ... not a placeholder\n"))
	assert.False(t, HasLazyEdit("README.md", "// ... existing code ...\n"))
}

func TestCollector(t *testing.T) {
	c := NewCollector("edit_file", "patch", nil)
	stream := []string{
		"Updating files.\n<edit_file path=\"a.go\">\npackage a\n</edit_file>\n",
		"<edit_file path=\"b.go\">\n<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE\n</edit_file>",
		"<patch>\n--- a/c.go\n+++ b/c.go\n@@ -1 +1 @@\n-x\n+y\n</patch>",
		"<edit_file>lost</edit_file>",
	}

	for _, err := range scanner.Scan(context.Background(), slices.Values(stream), c.Registry()) {
		require.NoError(t, err)
	}

	blocks := c.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, Block{Path: "a.go", Kind: KindContent, Content: "package a\n", Source: "tag"}, blocks[0])
	assert.Equal(t, KindSearchReplace, blocks[1].Kind)
	assert.Equal(t, []Pair{{Search: "old", Replace: "new"}}, blocks[1].Pairs)
	assert.Equal(t, "c.go", blocks[2].Path)
	assert.Equal(t, KindPatch, blocks[2].Kind)
	assert.Equal(t, 1, c.Skipped())
}

func TestExtractMarkdown(t *testing.T) {
	md := "Here you go.\n\n`cmd/main.go`\n```go\npackage main\n```\n\n" +
		"`pkg/util.go`\n```go\n<<<<<<< SEARCH\nfunc A() {}\n=======\nfunc B() {}\n>>>>>>> REPLACE\n```\n\n" +
		"```diff\n--- a/lib.go\n+++ b/lib.go\n@@ -1 +1 @@\n-x\n+y\n```\n\n" +
		"```go\nunnamed\n```\n"

	blocks, err := ExtractMarkdown(md)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.Equal(t, Block{Path: "cmd/main.go", Kind: KindContent, Content: "package main\n", Source: "markdown"}, blocks[0])
	assert.Equal(t, "pkg/util.go", blocks[1].Path)
	assert.Equal(t, []Pair{{Search: "func A() {}", Replace: "func B() {}"}}, blocks[1].Pairs)
	assert.Equal(t, Block{Path: "lib.go", Kind: KindPatch, Content: "--- a/lib.go\n+++ b/lib.go\n@@ -1 +1 @@\n-x\n+y", Source: "markdown"}, blocks[2])
}

func TestExtractPathFromDiff(t *testing.T) {
	assert.Equal(t, "x/y.go", ExtractPathFromDiff("--- a/x/y.go\n+++ b/x/y.go\n"))
	assert.Equal(t, "z.go", ExtractPathFromDiff("--- z.go\n+++ z.go\t2024-01-01\n"))
	assert.Equal(t, "", ExtractPathFromDiff("--- a/q.go\n+++ /dev/null\n"))
	assert.Equal(t, "", ExtractPathFromDiff("@@ -1 +1 @@\n"))
}

func TestHasAllowedExtension(t *testing.T) {
	assert.True(t, HasAllowedExtension("a.go", nil))
	assert.True(t, HasAllowedExtension("a.go", []string{".go"}))
	assert.True(t, HasAllowedExtension("a.go", []string{"go"}))
	assert.False(t, HasAllowedExtension("a.py", []string{".go"}))
}
