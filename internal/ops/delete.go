package ops

import (
	"context"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
)

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Success bool   `json:"success"`
	Deleted bool   `json:"deleted"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// Delete permanently removes a record and its index entry.
func Delete(ctx context.Context, deps *Deps, id int64) (*DeleteOutput, error) {
	if id <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}

	if err := db.Delete(ctx, deps.DB, id); err != nil {
		return nil, err
	}
	deps.deindex(id)
	deps.logger().Info("record deleted", "id", id)

	return &DeleteOutput{
		Success: true,
		Deleted: true,
		ID:      id,
		Message: "Record deleted",
	}, nil
}
