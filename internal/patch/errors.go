package patch

import (
	"errors"
	"fmt"
)

var (
	ErrNoHunks      = errors.New("patch contains no hunks")
	ErrUnanchorable = errors.New("hunk context not found")
)

// UnanchorableHunkError identifies the hunk that stopped an apply call.
// Index is zero-based in patch order.
type UnanchorableHunkError struct {
	Index int
	Hunk  string
}

func (e *UnanchorableHunkError) Error() string {
	return fmt.Sprintf("hunk %d (%s): %v", e.Index+1, e.Hunk, ErrUnanchorable)
}

func (e *UnanchorableHunkError) Unwrap() error {
	return ErrUnanchorable
}
