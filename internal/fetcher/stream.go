package fetcher

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/goccy/go-json"
)

// ErrNotCollection is yielded when the document is neither an array nor an object.
var ErrNotCollection = errors.New("json document is not an array or object")

// Stream decodes the items of a top-level JSON array, or the values of a
// top-level JSON object, one at a time as the consumer pulls them. Only one
// item is held in memory. A decode error is yielded as the last value.
func Stream[T any](r io.Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		dec := json.NewDecoder(r)

		tok, err := dec.Token()
		if err != nil {
			yield(zero, fmt.Errorf("read document start: %w", err))
			return
		}
		delim, ok := tok.(json.Delim)
		if !ok || (delim != '[' && delim != '{') {
			yield(zero, ErrNotCollection)
			return
		}
		isObject := delim == '{'

		for i := 0; dec.More(); i++ {
			if isObject {
				// Object keys are discarded; only values are streamed.
				if _, err := dec.Token(); err != nil {
					yield(zero, fmt.Errorf("read key %d: %w", i, err))
					return
				}
			}
			var v T
			if err := dec.Decode(&v); err != nil {
				yield(zero, fmt.Errorf("decode item %d: %w", i, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}

		if _, err := dec.Token(); err != nil {
			yield(zero, fmt.Errorf("read document end: %w", err))
		}
	}
}
