package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID          int64
	IncludeText *bool // default: true (nil means default)
}

// Fetch retrieves a full record by id.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*record.Record, error) {
	if input.ID <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}

	r, err := db.GetByID(ctx, database, input.ID)
	if err != nil {
		return nil, err
	}

	if input.IncludeText != nil && !*input.IncludeText {
		r.ExtractedText = ""
	}
	return r, nil
}

// Stats returns totals across all records.
func Stats(ctx context.Context, database *sql.DB) (record.Stats, error) {
	return db.Stats(ctx, database)
}
