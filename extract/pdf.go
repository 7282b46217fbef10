package extract

import (
	"bytes"
	"context"
	"io"

	"github.com/ledongthuc/pdf"
)

// extractPDF pulls the plain text stream out of a PDF document.
func extractPDF(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	// The full document can be much larger than the cap; stop reading
	// once we have enough
	text, err := io.ReadAll(io.LimitReader(textReader, MaxTextLength*4))
	if err != nil {
		return "", err
	}
	return string(text), nil
}
