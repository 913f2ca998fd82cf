package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction marks a file whose text could not be extracted. It is a
// per-file failure: callers skip the file and carry on.
var ErrExtraction = errors.New("text extraction failed")

// maxFileSize caps what is loaded into memory for one document.
const maxFileSize = 200 << 20

// Extractor turns a document into its ordered per-page text.
type Extractor interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// PDF extracts plain text page by page with ledongthuc/pdf.
type PDF struct{}

// NewPDF returns a PDF extractor.
func NewPDF() *PDF { return &PDF{} }

// Pages returns one string per page, in page order. Pages without a content
// stream come back as empty strings so page numbers stay aligned.
func (PDF) Pages(ctx context.Context, path string) (pages []string, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrExtraction, path)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrExtraction, path, maxFileSize)
	}

	// The parser panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: malformed pdf: %v", ErrExtraction, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExtraction, path, err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %v", ErrExtraction, path, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// HasText reports whether any page carries non-whitespace text.
func HasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
