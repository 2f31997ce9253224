package scanner

import (
	"context"
	"iter"
)

// Scan runs a Scanner over chunks and yields pass-through fragments. A
// non-nil error is yielded at most once, as the final element: the context
// error on cancellation or an *IncompleteTagError when the source ends
// inside a tag. Breaking out of the loop stops pulling chunks and discards
// buffered text.
func Scan(ctx context.Context, chunks iter.Seq[string], tags Registry) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s := New(tags)
		for chunk := range chunks {
			if err := ctx.Err(); err != nil {
				s.Reset()
				yield("", err)
				return
			}
			for _, frag := range s.Feed(chunk) {
				if !yield(frag, nil) {
					s.Reset()
					return
				}
			}
			if s.Stopped() {
				return
			}
		}
		if err := s.Finish(); err != nil {
			yield("", err)
		}
	}
}
