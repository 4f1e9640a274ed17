package ops

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// maxImportLine bounds one JSONL line; extracted text of large scans runs to megabytes.
const maxImportLine = 64 * 1024 * 1024

// ImportMode controls duplicate handling during import.
type ImportMode string

const (
	ImportModeSkip  ImportMode = "skip"  // skip records whose content_hash is stored
	ImportModeError ImportMode = "error" // abort on any duplicate or bad line (atomic)
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: skip
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one line that was not imported.
type ImportError struct {
	Line     int    `json:"line"`
	Filename string `json:"filename,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// importLine is either the header or a record.
type importLine struct {
	record.Record
	OCRDeskExport bool `json:"_ocrdesk_export"`
}

type parsedRecord struct {
	line int
	rec  record.Record
}

// Import restores records from a backup written by Export.
// Records get fresh ids; content_hash, summary and created_at are kept.
func Import(ctx context.Context, deps *Deps, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeSkip
	}
	if input.Mode != ImportModeSkip && input.Mode != ImportModeError {
		return nil, errors.NewInvalidRequest("mode must be one of: skip, error")
	}

	exportsDir := ExportsDir(deps.BaseDir)
	if err := ValidatePath(input.Path, PathCheckRead, exportsDir, deps.Config); err != nil {
		return nil, err
	}
	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file)

	var out *ImportOutput
	if input.Mode == ImportModeError {
		if len(parseErrors) > 0 {
			return &ImportOutput{Errors: parseErrors}, nil
		}
		out, err = importAtomic(ctx, deps, records)
	} else {
		out, err = importSkipping(ctx, deps, records, parseErrors)
	}
	if err != nil {
		return nil, err
	}

	deps.logger().Info("records imported", "path", input.Path, "imported", out.Imported, "skipped", out.Skipped)
	return out, nil
}

func parseExportFile(r io.Reader) ([]parsedRecord, []ImportError) {
	var records []parsedRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var l importLine
		if err := json.Unmarshal(line, &l); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if l.OCRDeskExport {
			continue
		}
		if strings.TrimSpace(l.Filename) == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing filename field",
			})
			continue
		}
		records = append(records, parsedRecord{line: lineNum, rec: l.Record})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	return records, parseErrors
}

// prepare normalizes an imported record before insert.
func prepare(r record.Record) *record.Record {
	r.ID = 0
	if r.ContentHash != nil && *r.ContentHash == "" {
		r.ContentHash = nil
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}
	if r.WordCount == 0 && r.CharacterLength == 0 && r.ExtractedText != "" {
		r.WordCount = record.CountWords(r.ExtractedText)
		r.CharacterLength = record.CountChars(r.ExtractedText)
	}
	return &r
}

// importAtomic inserts every record in one transaction; the first duplicate
// rolls everything back.
func importAtomic(ctx context.Context, deps *Deps, records []parsedRecord) (*ImportOutput, error) {
	tx, err := deps.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := make([]*record.Record, 0, len(records))
	for _, p := range records {
		r := prepare(p.rec)
		if err := db.Insert(ctx, tx, r); err != nil {
			if errors.Is(err, errors.ErrDuplicate) {
				return &ImportOutput{Errors: []ImportError{duplicateLine(p.line, r)}}, nil
			}
			return nil, err
		}
		inserted = append(inserted, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	for _, r := range inserted {
		deps.indexRecord(r)
	}
	return &ImportOutput{Imported: len(inserted), Errors: []ImportError{}}, nil
}

// importSkipping inserts records one by one, skipping duplicates and bad lines.
func importSkipping(ctx context.Context, deps *Deps, records []parsedRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{
		Skipped: len(parseErrors),
		Errors:  append([]ImportError{}, parseErrors...),
	}

	for _, p := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := prepare(p.rec)
		if err := db.Insert(ctx, deps.DB, r); err != nil {
			if errors.Is(err, errors.ErrDuplicate) {
				out.Skipped++
				out.Errors = append(out.Errors, duplicateLine(p.line, r))
				continue
			}
			return nil, err
		}
		deps.indexRecord(r)
		out.Imported++
	}
	slices.SortStableFunc(out.Errors, func(a, b ImportError) int { return cmp.Compare(a.Line, b.Line) })
	return out, nil
}

func duplicateLine(line int, r *record.Record) ImportError {
	return ImportError{
		Line:     line,
		Filename: r.Filename,
		Code:     string(errors.ErrDuplicate),
		Message:  fmt.Sprintf("content_hash %s already stored", record.ShortHash(r.ContentHash)),
	}
}
