package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/metrics"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// SummaryStatus reports what happened to the optional summary step of Submit.
type SummaryStatus string

const (
	SummaryGenerated    SummaryStatus = "generated"
	SummaryUnavailable  SummaryStatus = "unavailable"
	SummaryFailed       SummaryStatus = "failed"
	SummarySkipped      SummaryStatus = "skipped" // duplicate or nothing to summarize
	SummaryNotRequested SummaryStatus = "not_requested"
)

// SubmitInput contains parameters for the Submit operation.
type SubmitInput struct {
	Filename        string
	ExtractedText   string
	WordCount       int
	CharacterLength int
	ContentHash     string // optional; empty disables the duplicate check
	GenerateSummary bool
}

// SubmitOutput contains the result of the Submit operation.
type SubmitOutput struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped"`
	Message string `json:"message"`

	// ID is the new record's id, or the stored record's id for a duplicate.
	ID int64 `json:"id,omitempty"`

	SummaryStatus SummaryStatus `json:"summary_status"`
	SummaryError  string        `json:"summary_error,omitempty"`
}

// Submit stores one document's extraction result.
//
// The steps run in order: duplicate check, insert, then the optional summary.
// A duplicate short-circuits before the summarizer is consulted. The summary
// step is best-effort: its failure is reported in SummaryStatus and the
// inserted record stays.
func Submit(ctx context.Context, deps *Deps, input SubmitInput) (*SubmitOutput, error) {
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, errors.NewInvalidRequest("filename is required")
	}
	if input.WordCount < 0 || input.CharacterLength < 0 {
		return nil, errors.NewInvalidRequest("word_count and character_length must not be negative")
	}
	hash, err := normalizeHash(input.ContentHash)
	if err != nil {
		return nil, err
	}

	if hash != "" {
		id, found, err := db.IDByHash(ctx, deps.DB, hash)
		if err != nil {
			return nil, err
		}
		if found {
			return duplicateOutput(filename, id), nil
		}
	}

	r := &record.Record{
		Filename:        filename,
		ExtractedText:   input.ExtractedText,
		WordCount:       input.WordCount,
		CharacterLength: input.CharacterLength,
		CreatedAt:       time.Now().Unix(),
	}
	if r.WordCount == 0 && r.CharacterLength == 0 && r.ExtractedText != "" {
		r.WordCount = record.CountWords(r.ExtractedText)
		r.CharacterLength = record.CountChars(r.ExtractedText)
	}
	if hash != "" {
		r.ContentHash = &hash
	}

	if err := db.Insert(ctx, deps.DB, r); err != nil {
		if errors.Is(err, errors.ErrDuplicate) {
			// Lost a race with a concurrent submit of the same content
			existingID, _, _ := db.IDByHash(ctx, deps.DB, hash)
			return duplicateOutput(filename, existingID), nil
		}
		return nil, err
	}
	metrics.ObserveIngest(metrics.OutcomeStored)
	deps.indexRecord(r)

	out := &SubmitOutput{
		Success:       true,
		Message:       fmt.Sprintf("Successfully processed %s", filename),
		ID:            r.ID,
		SummaryStatus: SummaryNotRequested,
	}
	if input.GenerateSummary {
		out.SummaryStatus, out.SummaryError = summarizeAndStore(ctx, deps, r)
	}

	deps.logger().Info("record stored",
		"id", r.ID,
		"filename", filename,
		"content_hash", record.ShortHash(r.ContentHash),
		"summary_status", out.SummaryStatus,
	)
	return out, nil
}

func duplicateOutput(filename string, id int64) *SubmitOutput {
	metrics.ObserveIngest(metrics.OutcomeSkipped)
	return &SubmitOutput{
		Success:       true,
		Skipped:       true,
		Message:       fmt.Sprintf("Document already processed (duplicate content): %s", filename),
		ID:            id,
		SummaryStatus: SummarySkipped,
	}
}

// summarizeAndStore is the second, independent step of Submit.
// It mutates r.Summary on success.
func summarizeAndStore(ctx context.Context, deps *Deps, r *record.Record) (SummaryStatus, string) {
	s := deps.summarizer()
	if !s.Available() {
		metrics.ObserveSummary(metrics.SummaryUnavailable, 0)
		return SummaryUnavailable, ""
	}
	if strings.TrimSpace(r.ExtractedText) == "" {
		return SummarySkipped, ""
	}

	start := time.Now()
	summary, err := s.Summarize(ctx, r.ExtractedText)
	if err != nil {
		metrics.ObserveSummary(metrics.SummaryFailed, time.Since(start))
		deps.logger().Warn("summary generation failed", "id", r.ID, "filename", r.Filename, "error", err)
		return SummaryFailed, err.Error()
	}
	if err := db.UpdateSummary(ctx, deps.DB, r.ID, &summary); err != nil {
		deps.logger().Error("store summary", "id", r.ID, "error", err)
		return SummaryFailed, err.Error()
	}
	metrics.ObserveSummary(metrics.SummaryOK, time.Since(start))

	r.Summary = &summary
	deps.indexRecord(r)
	return SummaryGenerated, ""
}

// CheckDuplicateOutput contains the result of the CheckDuplicate operation.
type CheckDuplicateOutput struct {
	IsDuplicate bool   `json:"is_duplicate"`
	ID          *int64 `json:"id,omitempty"`
}

// CheckDuplicate reports whether content with the given digest is already stored.
func CheckDuplicate(ctx context.Context, deps *Deps, hash string) (*CheckDuplicateOutput, error) {
	hash, err := normalizeHash(hash)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, errors.NewInvalidRequest("hash is required")
	}

	id, found, err := db.IDByHash(ctx, deps.DB, hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return &CheckDuplicateOutput{}, nil
	}
	return &CheckDuplicateOutput{IsDuplicate: true, ID: &id}, nil
}
