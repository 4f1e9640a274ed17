package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"

	"github.com/hpungsan/ocrdesk/internal/errors"
)

// TextLayerExtractor reads the embedded text layer of born-digital PDFs.
// It needs pdftotext (poppler-utils) on PATH.
type TextLayerExtractor struct {
	convert func(path string) (string, error)
}

// NewTextLayer returns a docconv-backed extractor.
func NewTextLayer() *TextLayerExtractor {
	return &TextLayerExtractor{convert: docconvPDF}
}

// Extract returns the PDF's text layer. A scanned PDF yields empty text.
func (t *TextLayerExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := t.convert(path)
	if err != nil {
		return nil, errors.NewExtractionFailed(path, err)
	}
	text := strings.TrimSpace(body)
	pages := strings.Count(text, "\f")
	if text != "" {
		pages++
	}
	text = strings.ReplaceAll(text, "\f", "\n\n")
	return newResult(text, pages, MethodTextLayer), nil
}

func docconvPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	body, _, err := docconv.ConvertPDF(f)
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return body, nil
}
