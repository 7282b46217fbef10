// Package extract turns raw document bytes into plain text.
//
// Supported formats are an explicit capability table: each mime type maps
// to a registered Extractor, and anything outside the table fails with
// ErrUnsupportedFormat rather than being sniffed or guessed.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docpipe/core"
)

const (
	// MaxTextLength caps extracted text before embedding.
	MaxTextLength = 5000

	// SnippetLimit caps the text excerpt persisted on the document row.
	SnippetLimit = 500
)

// ErrUnsupportedFormat indicates a mime type with no registered extractor.
// It is a permanent failure: retrying never helps.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor converts one document format to plain text.
type Extractor interface {
	// Extract returns the plain text content of data.
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// Registry maps mime types to extractors.
// Not safe for concurrent registration; register everything up front.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a registry with the built-in extractors.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}

	r.Register("application/pdf", ExtractorFunc(extractPDF))
	r.Register("application/vnd.openxmlformats-officedocument.wordprocessingml.document", ExtractorFunc(extractDOCX))

	text := ExtractorFunc(extractText)
	r.Register("text/plain", text)
	r.Register("text/markdown", text)
	r.Register("text/csv", text)
	r.Register("text/html", text)
	r.Register("application/json", text)

	return r
}

// Register adds (or replaces) the extractor for a mime type.
func (r *Registry) Register(mimeType string, extractor Extractor) {
	r.extractors[normalizeMime(mimeType)] = extractor
}

// Supported reports whether a mime type has a registered extractor.
func (r *Registry) Supported(mimeType string) bool {
	_, ok := r.extractors[normalizeMime(mimeType)]
	return ok
}

// Extract converts data to plain text using the extractor registered for
// mimeType. The result is trimmed and capped at MaxTextLength. Extraction
// failures are permanent: the content itself is malformed.
func (r *Registry) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	extractor, ok := r.extractors[normalizeMime(mimeType)]
	if !ok {
		return "", core.MarkPermanent(fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType))
	}

	text, err := extractor.Extract(ctx, data)
	if err != nil {
		return "", core.MarkPermanent(fmt.Errorf("extracting %s: %w", mimeType, err))
	}

	return capText(strings.TrimSpace(text), MaxTextLength), nil
}

// Snippet returns the leading slice of text persisted on document rows.
func Snippet(text string) string {
	return capText(text, SnippetLimit)
}

// capText truncates text to at most limit bytes, backing the cut up to a
// rune boundary so the result is always valid UTF-8.
func capText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

// normalizeMime strips parameters and case from a mime type.
func normalizeMime(mimeType string) string {
	if base, _, found := strings.Cut(mimeType, ";"); found {
		mimeType = base
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
