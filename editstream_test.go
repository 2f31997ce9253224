package editstream

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/editstream/internal/config"
	"github.com/sokinpui/editstream/internal/edit"
	"github.com/sokinpui/editstream/internal/source"
)

type harness struct {
	root string
	out  bytes.Buffer
}

func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	h := &harness{root: t.TempDir()}
	for name, content := range files {
		h.write(t, name, content)
	}
	return h
}

func (h *harness) write(t *testing.T, name, content string) {
	t.Helper()
	p := filepath.Join(h.root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func (h *harness) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.root, name))
	require.NoError(t, err)
	return string(data)
}

// run executes one app over input, delivered in small chunks so tags are
// split across reads.
func (h *harness) run(t *testing.T, cfg *config.Config, input string) Summary {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	app, err := NewApp(cfg,
		WithRoot(h.root),
		WithStdout(&h.out),
		WithSource(func() (*source.Reader, error) {
			return source.FromString(input, 7), nil
		}),
	)
	require.NoError(t, err)

	summary, err := app.Execute(context.Background())
	require.NoError(t, err)
	return summary
}

func TestCreateFile(t *testing.T) {
	h := newHarness(t, nil)

	s := h.run(t, nil, "Here it is.\n<file path=\"pkg/a.go\">\npackage a\n</file>\nDone.")

	assert.Equal(t, []string{filepath.Join("pkg", "a.go")}, s.Created)
	assert.Equal(t, "package a\n", h.read(t, "pkg/a.go"))
	assert.NotEmpty(t, s.HistoryID)
	assert.True(t, s.OK())
}

func TestSearchReplace(t *testing.T) {
	h := newHarness(t, map[string]string{"b.go": "func A() {\n\treturn 1\n}\n"})

	s := h.run(t, nil, "<file path=\"b.go\">\n<<<<<<< SEARCH\n\treturn 1\n=======\n\treturn 2\n>>>>>>> REPLACE\n</file>")

	assert.Equal(t, []string{"b.go"}, s.Modified)
	assert.Equal(t, "func A() {\n\treturn 2\n}\n", h.read(t, "b.go"))
}

func TestSearchReplaceMissingFile(t *testing.T) {
	h := newHarness(t, nil)

	s := h.run(t, nil, "<file path=\"gone.go\">\n<<<<<<< SEARCH\nx\n=======\ny\n>>>>>>> REPLACE\n</file>")

	require.Len(t, s.Failed, 1)
	assert.Contains(t, s.Failed[0], ErrMissingFile.Error())
	assert.NoFileExists(t, filepath.Join(h.root, "gone.go"))
}

func TestPatch(t *testing.T) {
	h := newHarness(t, map[string]string{"c.txt": "one\ntwo\nthree\n"})

	s := h.run(t, nil, "<patch path=\"c.txt\">\n--- a/c.txt\n+++ b/c.txt\n@@ -7,3 +7,3 @@\n one\n-two\n+TWO\n three\n</patch>")

	assert.Equal(t, []string{"c.txt"}, s.Modified)
	assert.Equal(t, "one\nTWO\nthree\n", h.read(t, "c.txt"))
}

func TestReversePatch(t *testing.T) {
	h := newHarness(t, map[string]string{"c.txt": "one\nTWO\nthree\n"})
	cfg := config.Default()
	cfg.Reverse = true

	h.run(t, cfg, "<patch path=\"c.txt\">\n@@ -1,3 +1,3 @@\n one\n-two\n+TWO\n three\n</patch>")

	assert.Equal(t, "one\ntwo\nthree\n", h.read(t, "c.txt"))
}

func TestPartialAndStrict(t *testing.T) {
	input := "<file path=\"d.go\">\n" +
		"<<<<<<< SEARCH\na\n=======\nb\n>>>>>>> REPLACE\n" +
		"<<<<<<< SEARCH\nzzz\n=======\ny\n>>>>>>> REPLACE\n</file>"

	t.Run("lenient", func(t *testing.T) {
		h := newHarness(t, map[string]string{"d.go": "a\n"})

		s := h.run(t, nil, input)

		assert.Equal(t, "b\n", h.read(t, "d.go"))
		require.Len(t, s.Unmatched, 1)
		assert.Equal(t, "zzz", s.Unmatched[0].Search)
		assert.Equal(t, edit.ReasonNotFound, s.Unmatched[0].Reason)
		assert.False(t, s.OK())
	})

	t.Run("strict", func(t *testing.T) {
		h := newHarness(t, map[string]string{"d.go": "a\n"})
		cfg := config.Default()
		cfg.Strict = true

		s := h.run(t, cfg, input)

		assert.Equal(t, "a\n", h.read(t, "d.go"))
		require.Len(t, s.Failed, 1)
		assert.Contains(t, s.Failed[0], ErrUnmatchedPairs.Error())
		assert.Empty(t, s.Modified)
	})
}

func TestAlreadyApplied(t *testing.T) {
	h := newHarness(t, map[string]string{"e.go": "new\n"})

	s := h.run(t, nil, "<file path=\"e.go\">\n<<<<<<< SEARCH\nold\n=======\nnew\n>>>>>>> REPLACE\n</file>")

	assert.Equal(t, []string{"e.go"}, s.Unchanged)
	assert.Empty(t, s.Failed)
	assert.Empty(t, s.Modified)
}

func TestBlocksForSamePathApplyInOrder(t *testing.T) {
	h := newHarness(t, map[string]string{"f.go": "x\n"})

	h.run(t, nil,
		"<file path=\"f.go\">\n<<<<<<< SEARCH\nx\n=======\ny\n>>>>>>> REPLACE\n</file>\n"+
			"<file path=\"f.go\">\n<<<<<<< SEARCH\ny\n=======\nz\n>>>>>>> REPLACE\n</file>")

	assert.Equal(t, "z\n", h.read(t, "f.go"))
}

func TestIncompleteStream(t *testing.T) {
	h := newHarness(t, nil)

	s := h.run(t, nil, "<file path=\"ok.go\">\npackage ok\n</file>\n<file path=\"cut.go\">\npackage cu")

	assert.NotEmpty(t, s.Incomplete)
	assert.Equal(t, "package ok\n", h.read(t, "ok.go"))
	assert.NoFileExists(t, filepath.Join(h.root, "cut.go"))
	assert.False(t, s.OK())
}

func TestLazyEditRefused(t *testing.T) {
	h := newHarness(t, nil)

	s := h.run(t, nil, "<file path=\"n.go\">\nfunc A() {}\n// ... existing code ...\n</file>")

	require.Len(t, s.Failed, 1)
	assert.Contains(t, s.Failed[0], ErrLazyEdit.Error())
	assert.NoFileExists(t, filepath.Join(h.root, "n.go"))
}

func TestPathOutsideRoot(t *testing.T) {
	h := newHarness(t, nil)

	s := h.run(t, nil, "<file path=\"../escape.go\">\npackage x\n</file>")

	require.Len(t, s.Failed, 1)
	assert.Contains(t, s.Failed[0], "../escape.go")
	assert.Empty(t, s.Created)
}

func TestFilters(t *testing.T) {
	h := newHarness(t, nil)
	cfg := config.Default()
	cfg.Extensions = []string{"go"}

	s := h.run(t, cfg, "<file path=\"a.go\">\npackage a\n</file><file path=\"b.py\">\nprint()\n</file>")

	assert.Equal(t, []string{"a.go"}, s.Created)
	assert.NoFileExists(t, filepath.Join(h.root, "b.py"))
}

func TestDryRun(t *testing.T) {
	h := newHarness(t, map[string]string{"g.txt": "a\nb\n"})
	cfg := config.Default()
	cfg.DryRun = true

	s := h.run(t, cfg, "<file path=\"g.txt\">\na\nB\n</file>")

	assert.Equal(t, "a\nb\n", h.read(t, "g.txt"))
	require.Len(t, s.Diffs, 1)
	assert.Equal(t, "g.txt", s.Diffs[0].Path)
	assert.Contains(t, s.Diffs[0].Doc.String(), "+B")
	assert.Empty(t, s.HistoryID)
	assert.NoDirExists(t, filepath.Join(h.root, ".editstream"))
}

func TestMarkdownFallback(t *testing.T) {
	h := newHarness(t, nil)

	s := h.run(t, nil, "Create this:\n\n`m.go`\n```go\npackage m\n```\n")

	assert.Equal(t, []string{"m.go"}, s.Created)
	assert.Equal(t, "package m\n", h.read(t, "m.go"))
}

func TestMarkdownIgnoredWhenTagsPresent(t *testing.T) {
	h := newHarness(t, nil)

	s := h.run(t, nil, "<file path=\"t.go\">\npackage t\n</file>\n`m.go`\n```go\npackage m\n```\n")

	assert.Equal(t, []string{"t.go"}, s.Created)
	assert.NoFileExists(t, filepath.Join(h.root, "m.go"))
}

func TestEcho(t *testing.T) {
	h := newHarness(t, nil)
	cfg := config.Default()
	cfg.Echo = true

	h.run(t, cfg, "before <file path=\"a.go\">\npackage a\n</file> after")

	assert.Equal(t, "before <file path=\"a.go\"></file> after", h.out.String())
}

func TestUndoRedo(t *testing.T) {
	h := newHarness(t, map[string]string{"u.go": "v1\n"})

	h.run(t, nil, "<file path=\"u.go\">\nv2\n</file><file path=\"new.go\">\nfresh\n</file>")
	require.Equal(t, "v2\n", h.read(t, "u.go"))

	undo := config.Default()
	undo.Undo = true
	s := h.run(t, undo, "")
	assert.Equal(t, "Undone", s.Message)
	assert.Equal(t, "v1\n", h.read(t, "u.go"))
	assert.NoFileExists(t, filepath.Join(h.root, "new.go"))

	s = h.run(t, undo, "")
	assert.Equal(t, "No undo", s.Message)

	redo := config.Default()
	redo.Redo = true
	s = h.run(t, redo, "")
	assert.Equal(t, "Redone", s.Message)
	assert.Equal(t, "v2\n", h.read(t, "u.go"))
	assert.Equal(t, "fresh\n", h.read(t, "new.go"))
}

func TestOutputDiffFix(t *testing.T) {
	h := newHarness(t, map[string]string{"h.txt": "one\ntwo\nthree\n"})
	cfg := config.Default()
	cfg.OutputDiffFix = true

	s := h.run(t, cfg, "<patch path=\"h.txt\">\n@@ -30,3 +30,3 @@\n one\n-two\n+2\n three\n</patch>")

	assert.Equal(t, "Corrected 1 diff(s)", s.Message)
	assert.Contains(t, h.out.String(), "@@ -1,3 +1,3 @@")
	assert.Equal(t, "one\ntwo\nthree\n", h.read(t, "h.txt"))
}

func TestApply(t *testing.T) {
	root := t.TempDir()

	s, err := Apply(context.Background(), "<file path=\"x.txt\">\nhello\n</file>", config.Default(), WithRoot(root))

	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, s.Created)
	data, err := os.ReadFile(filepath.Join(root, "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestFormatSummary(t *testing.T) {
	out := FormatSummary(Summary{
		Created:   []string{"a.go"},
		Unmatched: []Unmatched{{Path: "b.go", Search: "func X() {\n}", Reason: edit.ReasonNotFound}},
	})

	assert.Contains(t, out, "a.go")
	assert.Contains(t, out, `b.go: "func X() { ..." (search text not found)`)
	assert.Contains(t, FormatSummary(Summary{}), "Nothing to do.")
}
