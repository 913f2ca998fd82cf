package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

// sample returns n characters of varied, non-periodic text.
func sample(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz .,ÄÖü0123456789"
	runes := []rune(alphabet)
	var b strings.Builder
	x := uint32(2463534242)
	for i := 0; i < n; i++ {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		b.WriteRune(runes[int(x%uint32(len(runes)))])
	}
	return b.String()
}

func TestSplitEndToEndSizes(t *testing.T) {
	text := sample(5000)
	chunks, err := Split(text, 2000, 400)
	if err != nil {
		t.Fatalf("Split() = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	runes := []rune(text)
	wantOffsets := []int{0, 1600, 3200}
	wantLens := []int{2000, 2000, 1800}
	for i, c := range chunks {
		end := wantOffsets[i] + wantLens[i]
		if c != string(runes[wantOffsets[i]:end]) {
			t.Errorf("chunk %d does not start at offset %d with length %d", i, wantOffsets[i], wantLens[i])
		}
	}
}

func TestSplitShortText(t *testing.T) {
	for _, n := range []int{1, 10, 100} {
		text := sample(n)
		chunks, err := Split(text, 100, 20)
		if err != nil {
			t.Fatalf("Split() = %v", err)
		}
		if len(chunks) != 1 || chunks[0] != text {
			t.Errorf("n=%d: got %d chunks, want the whole text once", n, len(chunks))
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	chunks, err := Split("", 10, 2)
	if err != nil {
		t.Fatalf("Split() = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("got %d chunks for empty text, want 0", len(chunks))
	}
}

func TestSplitInvalidWindow(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{0, 0},
		{-5, 0},
		{10, 10},
		{10, 11},
		{10, -1},
	}
	for _, tt := range tests {
		_, err := Split("some text", tt.size, tt.overlap)
		if !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("Split(size=%d, overlap=%d) error = %v, want ErrInvalidWindow", tt.size, tt.overlap, err)
		}
	}
}

func TestSplitProperties(t *testing.T) {
	windows := []struct{ size, overlap int }{
		{10, 0}, {10, 3}, {10, 9}, {7, 1}, {64, 16}, {2000, 500},
	}
	for _, w := range windows {
		for _, n := range []int{1, 6, 7, 10, 11, 17, 63, 64, 65, 200, 1999, 2000, 2001, 4523} {
			text := sample(n)
			chunks, err := Split(text, w.size, w.overlap)
			if err != nil {
				t.Fatalf("Split() = %v", err)
			}

			if got, want := len(chunks), Count(n, w.size, w.overlap); got != want {
				t.Errorf("size=%d overlap=%d n=%d: %d chunks, Count says %d", w.size, w.overlap, n, got, want)
			}
			if n > w.size {
				step := w.size - w.overlap
				want := (n - w.overlap + step - 1) / step
				if len(chunks) != want {
					t.Errorf("size=%d overlap=%d n=%d: %d chunks, want ceil((L-o)/(s-o)) = %d", w.size, w.overlap, n, len(chunks), want)
				}
			}

			var rebuilt strings.Builder
			for i, c := range chunks {
				cl := utf8.RuneCountInString(c)
				if cl == 0 || cl > w.size {
					t.Fatalf("chunk %d has %d characters", i, cl)
				}
				if i < len(chunks)-1 && cl != w.size {
					t.Errorf("non-final chunk %d has %d characters, want %d", i, cl, w.size)
				}
				if i == 0 {
					rebuilt.WriteString(c)
					continue
				}
				prev := []rune(chunks[i-1])
				cur := []rune(c)
				if string(prev[len(prev)-w.overlap:]) != string(cur[:w.overlap]) {
					t.Errorf("chunks %d and %d do not overlap by %d characters", i-1, i, w.overlap)
				}
				rebuilt.WriteString(string(cur[w.overlap:]))
			}
			if rebuilt.String() != text {
				t.Errorf("size=%d overlap=%d n=%d: chunks do not reconstruct the text", w.size, w.overlap, n)
			}
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := sample(3333)
	a, _ := Split(text, 500, 120)
	b, _ := Split(text, 500, 120)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitMultibyte(t *testing.T) {
	text := strings.Repeat("日本語", 10) // 30 characters, 90 bytes
	chunks, err := Split(text, 12, 2)
	if err != nil {
		t.Fatalf("Split() = %v", err)
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
}
