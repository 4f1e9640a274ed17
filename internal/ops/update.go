package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/metrics"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// regenerations collapses concurrent regenerate calls for one record into a
// single summarizer run.
var regenerations singleflight.Group

// RegenerateSummary summarizes a stored record's text and overwrites its summary.
func RegenerateSummary(ctx context.Context, deps *Deps, id int64) (*record.Record, error) {
	if id <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}

	// The flight outlives any single caller; each caller stops waiting when
	// its own context ends.
	key := fmt.Sprintf("%p/%d", deps.DB, id)
	flight := context.WithoutCancel(ctx)
	ch := regenerations.DoChan(key, func() (any, error) {
		return regenerate(flight, deps, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Callers sharing a flight get their own copy
		r := *res.Val.(*record.Record)
		return &r, nil
	}
}

func regenerate(ctx context.Context, deps *Deps, id int64) (*record.Record, error) {
	r, err := db.GetByID(ctx, deps.DB, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.ExtractedText) == "" {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("record %d has no extracted text to summarize", id))
	}

	s := deps.summarizer()
	if !s.Available() {
		metrics.ObserveSummary(metrics.SummaryUnavailable, 0)
		return nil, errors.NewSummarizationUnavailable()
	}

	start := time.Now()
	summary, err := s.Summarize(ctx, r.ExtractedText)
	if err != nil {
		metrics.ObserveSummary(metrics.SummaryFailed, time.Since(start))
		deps.logger().Warn("summary regeneration failed", "id", id, "error", err)
		if _, ok := errors.As(err); ok || ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.NewSummarizationFailed(err)
	}
	metrics.ObserveSummary(metrics.SummaryOK, time.Since(start))

	if err := db.UpdateSummary(ctx, deps.DB, id, &summary); err != nil {
		return nil, err
	}
	r.Summary = &summary
	deps.indexRecord(r)
	deps.logger().Info("summary regenerated", "id", id, "filename", r.Filename)
	return r, nil
}

// SetSummary stores a caller-provided summary. Blank text clears the summary.
func SetSummary(ctx context.Context, deps *Deps, id int64, summary string) (*record.Record, error) {
	if id <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}

	var value *string
	if s := strings.TrimSpace(summary); s != "" {
		value = &s
	}
	if err := db.UpdateSummary(ctx, deps.DB, id, value); err != nil {
		return nil, err
	}

	r, err := db.GetByID(ctx, deps.DB, id)
	if err != nil {
		return nil, err
	}
	deps.indexRecord(r)
	return r, nil
}
