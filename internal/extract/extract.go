// Package extract turns a PDF file into plain text plus word and character counts.
package extract

import (
	"context"
	"os"

	"github.com/hpungsan/ocrdesk/internal/config"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// Extraction methods reported in Result.Method.
const (
	MethodOCR       = "ocr"
	MethodTextLayer = "text"
)

// Result is the output of one extraction.
type Result struct {
	Text            string
	WordCount       int
	CharacterLength int
	Pages           int
	Method          string
}

// Extractor produces text from a PDF on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// New returns the extractor selected by cfg.ExtractMode.
func New(cfg *config.Config) Extractor {
	if cfg.ExtractMode == config.ExtractText {
		return NewTextLayer()
	}
	o := NewOCR(cfg.OCRDPI, cfg.OCRLanguage)
	o.PageMarkers = cfg.OCRPageMarkers
	return o
}

// newResult fills in the text metrics.
func newResult(text string, pages int, method string) *Result {
	return &Result{
		Text:            text,
		WordCount:       record.CountWords(text),
		CharacterLength: record.CountChars(text),
		Pages:           pages,
		Method:          method,
	}
}

// checkFile maps a missing or unreadable input to the I/O error kind.
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
		return errors.NewInternal(err)
	}
	if info.IsDir() {
		return errors.NewInvalidRequest("path is a directory: " + path)
	}
	return nil
}
