package ops

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/ocrdesk/internal/config"
	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/extract"
	"github.com/hpungsan/ocrdesk/internal/hasher"
	"github.com/hpungsan/ocrdesk/internal/metrics"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// Per-file ingestion outcomes.
const (
	OutcomeStored  = metrics.OutcomeStored
	OutcomeSkipped = metrics.OutcomeSkipped
	OutcomeFailed  = metrics.OutcomeFailed
)

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Outcome  string `json:"outcome"`
	Message  string `json:"message"`

	ID              int64         `json:"id,omitempty"`
	Pages           int           `json:"pages,omitempty"`
	WordCount       int           `json:"word_count,omitempty"`
	CharacterLength int           `json:"character_length,omitempty"`
	ContentHash     string        `json:"content_hash,omitempty"`
	SummaryStatus   SummaryStatus `json:"summary_status,omitempty"`

	// ErrorCode is set for failed files.
	ErrorCode string `json:"error_code,omitempty"`
}

// IngestFileInput contains parameters for the IngestFile operation.
type IngestFileInput struct {
	Path            string // required
	Filename        string // default: base name of Path
	GenerateSummary bool
}

// IngestFile runs the full pipeline for one PDF on disk:
// hash, duplicate check, text extraction, metrics, then Submit.
// A duplicate is detected before extraction so no OCR time is spent on it.
func IngestFile(ctx context.Context, deps *Deps, input IngestFileInput) (*FileResult, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	filename := input.Filename
	if filename == "" {
		filename = filepath.Base(input.Path)
	}

	res, err := ingestFile(ctx, deps, input.Path, filename, input.GenerateSummary)
	if err != nil {
		metrics.ObserveIngest(metrics.OutcomeFailed)
		return nil, err
	}
	return res, nil
}

func ingestFile(ctx context.Context, deps *Deps, path, filename string, summarize bool) (*FileResult, error) {
	hash, err := hasher.HashFile(path)
	if err != nil {
		return nil, err
	}

	existingID, found, err := db.IDByHash(ctx, deps.DB, hash)
	if err != nil {
		return nil, err
	}
	if found {
		out := duplicateOutput(filename, existingID)
		return &FileResult{
			Path:          path,
			Filename:      filename,
			Outcome:       OutcomeSkipped,
			Message:       out.Message,
			ID:            existingID,
			ContentHash:   hash,
			SummaryStatus: out.SummaryStatus,
		}, nil
	}

	extracted, err := deps.extractor().Extract(ctx, path)
	if err != nil {
		return nil, err
	}

	out, err := Submit(ctx, deps, SubmitInput{
		Filename:        filename,
		ExtractedText:   extracted.Text,
		WordCount:       extracted.WordCount,
		CharacterLength: extracted.CharacterLength,
		ContentHash:     hash,
		GenerateSummary: summarize,
	})
	if err != nil {
		return nil, err
	}

	outcome := OutcomeStored
	if out.Skipped {
		outcome = OutcomeSkipped
	}
	return &FileResult{
		Path:            path,
		Filename:        filename,
		Outcome:         outcome,
		Message:         out.Message,
		ID:              out.ID,
		Pages:           extracted.Pages,
		WordCount:       extracted.WordCount,
		CharacterLength: extracted.CharacterLength,
		ContentHash:     hash,
		SummaryStatus:   out.SummaryStatus,
	}, nil
}

func (d *Deps) extractor() extract.Extractor {
	if d.Extractor != nil {
		return d.Extractor
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return extract.New(cfg)
}

// BatchProgress is called after each file with the number of files done.
type BatchProgress func(done, total int, result FileResult)

// IngestBatchInput contains parameters for the IngestBatch operation.
type IngestBatchInput struct {
	Paths []string
	// Filenames optionally overrides the stored name per path (uploads keep
	// the client's file name while the bytes live in a temp file).
	Filenames       []string
	GenerateSummary bool
	Progress        BatchProgress
}

// BatchReport summarizes an IngestBatch run.
type BatchReport struct {
	BatchID   string       `json:"batch_id"`
	Total     int          `json:"total"`
	Stored    int          `json:"stored"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Cancelled bool         `json:"cancelled,omitempty"`
	Results   []FileResult `json:"results"`
}

// IngestBatch ingests files strictly one at a time. A failing file is
// recorded and the batch moves on. Cancelling ctx stops the batch before the
// next file; the file in flight runs to completion.
func IngestBatch(ctx context.Context, deps *Deps, input IngestBatchInput) *BatchReport {
	report := &BatchReport{
		BatchID: newBatchID(),
		Total:   len(input.Paths),
		Results: make([]FileResult, 0, len(input.Paths)),
	}
	log := deps.logger().With("batch_id", report.BatchID)
	log.Info("batch started", "files", report.Total, "summarize", input.GenerateSummary)

	for i, path := range input.Paths {
		if ctx.Err() != nil {
			report.Cancelled = true
			log.Warn("batch cancelled", "remaining", report.Total-i)
			break
		}

		filename := filepath.Base(path)
		if i < len(input.Filenames) && input.Filenames[i] != "" {
			filename = input.Filenames[i]
		}

		res, err := IngestFile(context.WithoutCancel(ctx), deps, IngestFileInput{
			Path:            path,
			Filename:        filename,
			GenerateSummary: input.GenerateSummary,
		})
		if err != nil {
			res = failedResult(path, filename, err)
		}

		switch res.Outcome {
		case OutcomeStored:
			report.Stored++
		case OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
		report.Results = append(report.Results, *res)

		log.Info("file processed",
			"filename", filename,
			"outcome", res.Outcome,
			"content_hash", record.ShortHash(optionalString(res.ContentHash)),
			"message", res.Message,
		)
		if input.Progress != nil {
			input.Progress(i+1, report.Total, *res)
		}
	}

	log.Info("batch finished",
		"stored", report.Stored,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report
}

func failedResult(path, filename string, err error) *FileResult {
	res := &FileResult{
		Path:     path,
		Filename: filename,
		Outcome:  OutcomeFailed,
		Message:  fmt.Sprintf("Failed to process %s: %v", filename, err),
	}
	if de, ok := errors.As(err); ok {
		res.ErrorCode = string(de.Code)
		res.Message = fmt.Sprintf("Failed to process %s: %s", filename, de.Message)
	}
	return res
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newBatchID returns a sortable id so batch logs order by start time.
func newBatchID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ScanDirectory lists the PDF files directly inside dir, sorted by name.
// The extension match is case-insensitive; subdirectories are not descended.
func ScanDirectory(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.NewInvalidRequest("directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(dir)
		}
		return nil, errors.NewInternal(err)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("not a directory: %s", dir))
	}

	// os.ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	paths := []string{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
