package scanner

import (
	"errors"
	"fmt"
)

var ErrIncompleteTag = errors.New("stream ended inside a tag")

// IncompleteTagError reports a tag that was opened but never closed.
type IncompleteTagError struct {
	Tag        string
	Attributes map[string]string
}

func (e *IncompleteTagError) Error() string {
	if path, ok := e.Attributes["path"]; ok {
		return fmt.Sprintf("incomplete <%s> block for %s: %v", e.Tag, path, ErrIncompleteTag)
	}
	return fmt.Sprintf("incomplete <%s> block: %v", e.Tag, ErrIncompleteTag)
}

func (e *IncompleteTagError) Unwrap() error {
	return ErrIncompleteTag
}
