// Package edit defines edit blocks and the formats that carry them: tagged
// stream payloads, SEARCH/REPLACE pairs and markdown code blocks.
package edit

import "fmt"

type Kind int

const (
	KindContent Kind = iota
	KindSearchReplace
	KindPatch
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindSearchReplace:
		return "search_replace"
	case KindPatch:
		return "patch"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Block is one instruction for a single file. Content holds the full file
// for KindContent and the raw unified diff for KindPatch.
type Block struct {
	Path    string
	Kind    Kind
	Content string
	Pairs   []Pair
	Source  string
}

// Pair is a SEARCH/REPLACE instruction exactly as the model wrote it.
type Pair struct {
	Search  string
	Replace string
}

// Span is a half-open byte range.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Hunk is a located edit. Original is the exact text at Anchor in the
// content version the hunk was resolved against.
type Hunk struct {
	Anchor      Span
	Original    string
	Replacement string
}

type Reason string

const (
	ReasonEmptySearch    Reason = "empty search text"
	ReasonNoChange       Reason = "search and replace are identical"
	ReasonNotFound       Reason = "search text not found"
	ReasonAlreadyApplied Reason = "replacement already present"
)

// MatchResult is either a matched Hunk or an unmatched Pair with a Reason.
type MatchResult struct {
	Pair   Pair
	Hunk   *Hunk
	Stage  string
	Reason Reason
}

func (r MatchResult) Matched() bool {
	return r.Hunk != nil
}
