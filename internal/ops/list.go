package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// Sort orders accepted by List.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	FilenameContains string // case-insensitive substring
	Summary          string // "with", "without", or "" / "all"
	SortBy           string // default: created_at
	Order            string // default: desc
	Limit            int    // default: 20, max: 100
	Offset           int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []record.RecordSummary `json:"items"`
	Pagination Pagination             `json:"pagination"`
	Sort       string                 `json:"sort"`
}

// List retrieves record summaries with filtering, sorting and pagination.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	summary, err := parseSummaryFilter(input.Summary)
	if err != nil {
		return nil, err
	}

	sortBy := strings.TrimSpace(input.SortBy)
	if sortBy == "" {
		sortBy = "created_at"
	}
	if !db.ValidSortColumn(sortBy) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("sort must be one of: id, filename, word_count, character_length, created_at (got %q)", sortBy))
	}

	order := strings.ToLower(strings.TrimSpace(input.Order))
	if order == "" {
		order = OrderDesc
	}
	if order != OrderAsc && order != OrderDesc {
		return nil, errors.NewInvalidRequest("order must be asc or desc")
	}

	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)
	offset := max(input.Offset, 0)

	records, total, err := db.List(ctx, database, db.ListQuery{
		FilenameContains: input.FilenameContains,
		Summary:          summary,
		SortBy:           sortBy,
		Descending:       order == OrderDesc,
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items: toSummaries(records),
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(records) < total,
			Total:   total,
		},
		Sort: sortBy + "_" + order,
	}, nil
}

func parseSummaryFilter(s string) (db.SummaryFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "any":
		return db.SummaryAny, nil
	case "with":
		return db.SummaryWith, nil
	case "without":
		return db.SummaryWithout, nil
	default:
		return "", errors.NewInvalidRequest("summary must be one of: with, without, all")
	}
}

// Recent returns the newest records first. Default limit 10, capped at 100.
func Recent(ctx context.Context, database *sql.DB, limit int) ([]record.RecordSummary, error) {
	records, _, err := db.List(ctx, database, db.ListQuery{
		SortBy:     "created_at",
		Descending: true,
		Limit:      clampLimit(limit, DefaultRecentLimit, MaxRecentLimit),
	})
	if err != nil {
		return nil, err
	}
	return toSummaries(records), nil
}

// NoSummary returns records that still lack a summary, oldest first, so a
// backfill works through them in ingestion order.
func NoSummary(ctx context.Context, database *sql.DB, limit int) ([]record.RecordSummary, error) {
	records, _, err := db.List(ctx, database, db.ListQuery{
		Summary: db.SummaryWithout,
		SortBy:  "created_at",
		Limit:   clampLimit(limit, DefaultNoSummaryLimit, MaxNoSummaryLimit),
	})
	if err != nil {
		return nil, err
	}
	return toSummaries(records), nil
}

// toSummaries never returns nil so JSON encodes an empty array.
func toSummaries(records []record.Record) []record.RecordSummary {
	out := make([]record.RecordSummary, 0, len(records))
	for i := range records {
		out = append(out, records[i].ToSummary())
	}
	return out
}
