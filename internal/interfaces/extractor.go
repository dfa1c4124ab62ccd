package interfaces

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat is returned for file types the extractor cannot handle
var ErrUnsupportedFormat = errors.New("unsupported document format")

// TextExtractor converts uploaded document bytes to plain text
type TextExtractor interface {
	// ExtractText extracts plain text from the given file contents. The
	// filename's extension selects the extraction path.
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)

	// SupportedExtensions lists the extensions this extractor accepts
	SupportedExtensions() []string
}
