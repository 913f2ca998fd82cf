package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned for a size/overlap pair that cannot produce
// forward-moving windows.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunk scopes. Page scope chunks every page on its own and keeps page
// numbers; document scope joins the pages with newlines first.
const (
	ScopePage     = "page"
	ScopeDocument = "document"
)

// Validate checks size > 0 and 0 <= overlap < size.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidWindow, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidWindow, size, overlap)
	}
	return nil
}

// Split cuts text into windows of size characters that start every
// size-overlap characters. The window that reaches the end of text covers
// the tail and is the last one, so the final chunk may be shorter than size
// but is never empty. Text no longer than size yields exactly one chunk;
// empty text yields none.
//
// Characters are runes, so multi-byte text is never cut inside a code point.
func Split(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}, nil
	}

	step := size - overlap
	chunks := make([]string, 0, Count(len(runes), size, overlap))
	for start := 0; ; start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Count returns how many chunks Split produces for a text of n characters:
// 0 for empty text, 1 when n <= size, otherwise ceil((n-overlap)/(size-overlap)).
func Count(n, size, overlap int) int {
	step := size - overlap
	switch {
	case n <= 0 || size <= 0 || step <= 0:
		return 0
	case n <= size:
		return 1
	}
	return (n - overlap + step - 1) / step
}
