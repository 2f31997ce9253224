package editstream

import (
	"fmt"
	"strings"

	"github.com/sokinpui/editstream/internal/edit"
	"github.com/sokinpui/editstream/internal/patch"
)

// Unmatched is a SEARCH/REPLACE pair that was not applied.
type Unmatched struct {
	Path   string
	Search string
	Reason edit.Reason
}

func (u Unmatched) String() string {
	search := strings.TrimSpace(u.Search)
	if first, _, cut := strings.Cut(search, "\n"); cut {
		search = strings.TrimSpace(first) + " ..."
	}
	if len(search) > 60 {
		search = search[:60] + "..."
	}
	return fmt.Sprintf("%s: %q (%s)", u.Path, search, u.Reason)
}

// FileDiff is the change a dry run would have written.
type FileDiff struct {
	Path string
	Doc  *patch.Document
}

type Summary struct {
	Created   []string
	Modified  []string
	Removed   []string
	Unchanged []string
	Unmatched []Unmatched
	Failed    []string
	// Skipped counts tag bodies dropped for lacking a path.
	Skipped int
	// Incomplete describes a block cut off by the end of the stream.
	Incomplete string
	Diffs      []FileDiff
	HistoryID  string
	Message    string
}

// OK reports whether every block was applied in full.
func (s Summary) OK() bool {
	return len(s.Failed) == 0 && len(s.Unmatched) == 0 && s.Incomplete == ""
}
