package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hpungsan/ocrdesk/internal/errors"
)

// External programs used for OCR.
const (
	RasterizerBin = "pdftoppm"
	OCRBin        = "tesseract"
)

// Runner executes an external program and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// PageCounter returns the number of pages in a PDF.
type PageCounter func(path string) (int, error)

// OCRExtractor rasterizes every page with pdftoppm and reads it back with tesseract.
type OCRExtractor struct {
	DPI      int
	Language string

	// PageMarkers prefixes each page's text with "--- Page N ---".
	PageMarkers bool

	Run        Runner
	CountPages PageCounter
	LookPath   func(file string) (string, error)
}

// NewOCR returns an OCR extractor backed by the real binaries.
func NewOCR(dpi int, language string) *OCRExtractor {
	return &OCRExtractor{
		DPI:        dpi,
		Language:   language,
		Run:        execRunner,
		CountPages: pdfcpuPageCount,
		LookPath:   exec.LookPath,
	}
}

// Extract runs OCR over every page of the PDF at path, in page order.
// A PDF with zero pages yields an empty result, not an error.
func (o *OCRExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}

	pages, err := o.CountPages(path)
	if err != nil {
		return nil, errors.NewExtractionFailed(path, fmt.Errorf("read pdf: %w", err))
	}
	if pages == 0 {
		return newResult("", 0, MethodOCR), nil
	}

	for _, bin := range []string{RasterizerBin, OCRBin} {
		if _, err := o.LookPath(bin); err != nil {
			return nil, errors.NewMissingTool(bin)
		}
	}

	tmpDir, err := os.MkdirTemp("", "ocrdesk-pages-*")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	_, err = o.Run(ctx, RasterizerBin, "-r", strconv.Itoa(o.DPI), "-png", path, prefix)
	if err != nil {
		return nil, errors.NewExtractionFailed(path, fmt.Errorf("rasterize: %w", err))
	}

	images, err := pageImages(tmpDir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(images) == 0 {
		return nil, errors.NewExtractionFailed(path, fmt.Errorf("rasterizer produced no images"))
	}

	texts := make([]string, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := o.Run(ctx, OCRBin, img, "stdout", "-l", o.Language)
		if err != nil {
			return nil, errors.NewExtractionFailed(path, fmt.Errorf("ocr page %d: %w", i+1, err))
		}
		page := strings.TrimSpace(string(out))
		if o.PageMarkers {
			page = fmt.Sprintf("--- Page %d ---\n%s", i+1, page)
		}
		texts = append(texts, page)
	}

	text := strings.TrimSpace(strings.Join(texts, "\n\n"))
	return newResult(text, len(images), MethodOCR), nil
}

// pageImages lists pdftoppm output (page-1.png, page-01.png, ...) in page order.
func pageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	return matches, nil
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "page-"))
	if err != nil {
		return 0
	}
	return n
}

// pdfcpuPageCount reads the page tree with relaxed validation so slightly
// malformed scanner output still opens.
func pdfcpuPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(f, conf)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
