package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// RecordColumns lists every persisted column of pdf_extracts.
// All reads select this full set so no field (summary in particular) can go missing.
var RecordColumns = []string{
	"id",
	"filename",
	"extracted_text",
	"word_count",
	"character_length",
	"content_hash",
	"summary",
	"created_at",
}

// selectColumns mirrors RecordColumns; legacy rows may hold NULL metrics.
const selectColumns = `id, filename, COALESCE(extracted_text, ''), COALESCE(word_count, 0),
	COALESCE(character_length, 0), content_hash, summary, created_at`

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Insert stores a new record and sets r.ID.
// Returns a DUPLICATE error if content_hash is already stored.
func Insert(ctx context.Context, db Execer, r *record.Record) error {
	query := `
		INSERT INTO pdf_extracts (
			filename, extracted_text, word_count, character_length,
			content_hash, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.ExecContext(ctx, query,
		r.Filename, r.ExtractedText, r.WordCount, r.CharacterLength,
		toNullString(r.ContentHash), toNullString(r.Summary), r.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			hash := ""
			if r.ContentHash != nil {
				hash = *r.ContentHash
			}
			return errors.NewDuplicate(hash)
		}
		return errors.NewInternal(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	r.ID = id
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves a record by id.
func GetByID(ctx context.Context, db *sql.DB, id int64) (*record.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM pdf_extracts WHERE id = ?`

	r, err := scanRecord(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// IDByHash looks up the id of the record stored under hash without loading
// its text. found is false when no record matches.
func IDByHash(ctx context.Context, db Querier, hash string) (id int64, found bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT id FROM pdf_extracts WHERE content_hash = ? LIMIT 1`, hash).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.NewInternal(err)
	}
	return id, true, nil
}

// UpdateSummary overwrites the summary of an existing record.
// A nil summary clears it.
func UpdateSummary(ctx context.Context, db *sql.DB, id int64, summary *string) error {
	result, err := db.ExecContext(ctx, `UPDATE pdf_extracts SET summary = ? WHERE id = ?`, toNullString(summary), id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// Delete permanently removes a record.
func Delete(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM pdf_extracts WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// Stats returns record count and summed metrics. An empty table yields zeros.
func Stats(ctx context.Context, db *sql.DB) (record.Stats, error) {
	var s record.Stats
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(word_count), 0), COALESCE(SUM(character_length), 0)
		FROM pdf_extracts
	`).Scan(&s.TotalRecords, &s.TotalWords, &s.TotalCharacters)
	if err != nil {
		return record.Stats{}, errors.NewInternal(err)
	}
	return s, nil
}

// SummaryFilter restricts listings by summary presence.
type SummaryFilter string

const (
	SummaryAny     SummaryFilter = ""
	SummaryWith    SummaryFilter = "with"
	SummaryWithout SummaryFilter = "without"
)

// sortColumns whitelists the columns a listing may be ordered by.
var sortColumns = map[string]string{
	"id":               "id",
	"filename":         "filename COLLATE NOCASE",
	"word_count":       "word_count",
	"character_length": "character_length",
	"created_at":       "created_at",
}

// ValidSortColumn reports whether name is an accepted sort key.
func ValidSortColumn(name string) bool {
	_, ok := sortColumns[name]
	return ok
}

// ListQuery selects a page of records.
type ListQuery struct {
	// FilenameContains is a case-insensitive substring match on filename
	FilenameContains string
	Summary          SummaryFilter
	// SortBy is a key of sortColumns; empty means created_at
	SortBy     string
	Descending bool
	Limit      int
	Offset     int
}

// List returns records matching q and the total count ignoring pagination.
// Ties are broken by id in the same direction so paging is stable.
func List(ctx context.Context, db *sql.DB, q ListQuery) ([]record.Record, int, error) {
	where, args := buildListWhere(q)

	countQuery := `SELECT COUNT(*) FROM pdf_extracts` + where
	var total int
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	col, ok := sortColumns[sortBy]
	if !ok {
		return nil, 0, errors.NewInvalidRequest(fmt.Sprintf("unknown sort column: %s", q.SortBy))
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	query := `SELECT ` + selectColumns + ` FROM pdf_extracts` + where +
		fmt.Sprintf(` ORDER BY %s %s, id %s LIMIT ? OFFSET ?`, col, dir, dir)
	args = append(args, q.Limit, q.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	records := make([]record.Record, 0, q.Limit)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return records, total, nil
}

func buildListWhere(q ListQuery) (string, []any) {
	var clauses []string
	var args []any

	if name := strings.TrimSpace(q.FilenameContains); name != "" {
		clauses = append(clauses, `filename LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(name)+"%")
	}
	switch q.Summary {
	case SummaryWith:
		clauses = append(clauses, `summary IS NOT NULL AND summary != ''`)
	case SummaryWithout:
		clauses = append(clauses, `(summary IS NULL OR summary = '')`)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListAll calls fn for every record in id order. Iteration stops at the first error.
func ListAll(ctx context.Context, db *sql.DB, fn func(*record.Record) error) error {
	rows, err := db.QueryContext(ctx, `SELECT `+selectColumns+` FROM pdf_extracts ORDER BY id`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return errors.NewInternal(err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single row into a Record.
func scanRecord(row scanner) (*record.Record, error) {
	var (
		r           record.Record
		contentHash sql.NullString
		summary     sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.Filename, &r.ExtractedText, &r.WordCount, &r.CharacterLength,
		&contentHash, &summary, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ContentHash = fromNullString(contentHash)
	r.Summary = fromNullString(summary)
	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
