package answer

import (
	"iter"
	"sync/atomic"

	"bookrag/internal/domain"
)

// Once wraps seq so it can be ranged over a single time. Later ranges yield
// domain.ErrStreamConsumed and nothing else.
func Once(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", domain.ErrStreamConsumed)
			return
		}
		seq(yield)
	}
}

// Collect drains seq into a single string, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var out []byte
	for frag, err := range seq {
		if err != nil {
			return string(out), err
		}
		out = append(out, frag...)
	}
	return string(out), nil
}
