// Package chunker splits extracted document text into overlapping,
// fixed-size fragments. Chunking is pure and deterministic so that
// re-ingesting the same document yields the same fragment indexes.
package chunker

import (
	"errors"
	"fmt"
)

// Defaults used when the caller does not configure a window.
const (
	DefaultSize    = 1200
	DefaultOverlap = 200
)

// ErrInvalidWindow is returned when size and overlap describe a window that
// would never advance through the text.
var ErrInvalidWindow = errors.New("chunker: invalid window")

// Validate reports whether (size, overlap) is a usable window.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidWindow, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidWindow, size, overlap)
	}
	return nil
}

// Chunk splits text into windows of size characters, advancing the window
// start by size-overlap each step. The final window may be shorter than
// size and always ends at the end of text; stepping stops there, so no
// window lies wholly inside the one before it. Characters are Unicode code
// points, so multi-byte runes are never split.
//
// An empty text yields no fragments.
func Chunk(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, Count(n, size, overlap))
	for start := 0; start < n; start += step {
		end := min(start+size, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return chunks, nil
}

// Count returns the number of fragments Chunk produces for a text of n
// characters: ceil((n-overlap)/(size-overlap)), and at least one for any
// non-empty text. It assumes a valid window.
func Count(n, size, overlap int) int {
	if n <= 0 {
		return 0
	}
	if n <= size {
		return 1
	}
	step := size - overlap
	return (n - overlap + step - 1) / step
}
