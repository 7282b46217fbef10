package extract

import (
	"context"
	"errors"
	"unicode/utf8"
)

// extractText passes plain-text content through, rejecting binary data
// that was mislabeled with a text mime type.
func extractText(ctx context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("content is not valid UTF-8")
	}
	return string(data), nil
}
