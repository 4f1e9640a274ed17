package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// writeBackup places content in deps' exports directory.
func writeBackup(t *testing.T, deps *Deps, name, content string) string {
	t.Helper()
	dir := ExportsDir(deps.BaseDir)
	require.NoError(t, os.MkdirAll(dir, 0700))
	return writeFile(t, dir, name, content)
}

func TestImport_RoundTrip(t *testing.T) {
	src := newTestDeps(t)
	seedRecords(t, src,
		record.Record{Filename: "a.pdf", ExtractedText: "alpha words", WordCount: 2, CharacterLength: 11, Summary: strPtr("A"), CreatedAt: 111},
		record.Record{Filename: "b.pdf", ExtractedText: "beta", WordCount: 1, CharacterLength: 4, CreatedAt: 222},
	)
	exported, err := Export(context.Background(), src, ExportInput{})
	require.NoError(t, err)

	dst := newTestDeps(t)
	dst.Config.AllowedPaths = []string{ExportsDir(src.BaseDir)}

	out, err := Import(context.Background(), dst, ImportInput{Path: exported.Path})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Imported)
	assert.Equal(t, 0, out.Skipped)
	assert.Empty(t, out.Errors)

	list, err := List(context.Background(), dst.DB, ListInput{SortBy: "created_at", Order: "asc"})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "a.pdf", list.Items[0].Filename)
	assert.Equal(t, int64(111), list.Items[0].CreatedAt)
	require.NotNil(t, list.Items[0].Summary)
	assert.Equal(t, "A", *list.Items[0].Summary)
	assert.Equal(t, 2, list.Items[0].WordCount)

	// imported records are searchable
	found, err := Search(context.Background(), dst, SearchInput{Query: "beta"})
	require.NoError(t, err)
	assert.Len(t, found.Items, 1)

	// a second import skips everything by content hash
	out, err = Import(context.Background(), dst, ImportInput{Path: exported.Path})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Imported)
	assert.Equal(t, 2, out.Skipped)
	require.Len(t, out.Errors, 2, "every skipped duplicate is reported")
	assert.Equal(t, string(errors.ErrDuplicate), out.Errors[0].Code)
	assert.Equal(t, "a.pdf", out.Errors[0].Filename)
	assert.Equal(t, 2, out.Errors[0].Line, "line 1 is the header")
	assert.Equal(t, 3, out.Errors[1].Line)
}

func TestImport_SkipModeReportsDuplicatesInLineOrder(t *testing.T) {
	deps := newTestDeps(t)
	existing := hashOf("existing")
	seedRecords(t, deps, record.Record{Filename: "have.pdf", ContentHash: &existing})

	path := writeBackup(t, deps, "dups.jsonl",
		`{"filename":"have-again.pdf","content_hash":"`+existing+`"}`+"\n"+
			`not json`+"\n"+
			`{"filename":"new.pdf","content_hash":"`+hashOf("new")+`"}`+"\n")

	out, err := Import(context.Background(), deps, ImportInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Imported)
	assert.Equal(t, 2, out.Skipped)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, 1, out.Errors[0].Line)
	assert.Equal(t, string(errors.ErrDuplicate), out.Errors[0].Code)
	assert.Equal(t, "have-again.pdf", out.Errors[0].Filename)
	assert.Equal(t, 2, out.Errors[1].Line)
	assert.Equal(t, "PARSE_ERROR", out.Errors[1].Code)
}

func TestImport_SkipModeReportsBadLines(t *testing.T) {
	deps := newTestDeps(t)
	path := writeBackup(t, deps, "mixed.jsonl",
		`{"_ocrdesk_export":true,"schema_version":"1","exported_at":1}`+"\n"+
			`{"filename":"ok.pdf","extracted_text":"fine"}`+"\n"+
			`not json`+"\n"+
			`{"extracted_text":"no name"}`+"\n")

	out, err := Import(context.Background(), deps, ImportInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Imported)
	assert.Equal(t, 2, out.Skipped)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, 3, out.Errors[0].Line)
	assert.Equal(t, "PARSE_ERROR", out.Errors[0].Code)
	assert.Equal(t, "INVALID_RECORD", out.Errors[1].Code)

	r, err := Fetch(context.Background(), deps.DB, FetchInput{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, r.WordCount, "metrics recomputed when absent")
	assert.Nil(t, r.ContentHash)
}

func TestImport_ErrorModeIsAtomic(t *testing.T) {
	deps := newTestDeps(t)
	existing := hashOf("existing")
	seedRecords(t, deps, record.Record{Filename: "have.pdf", ContentHash: &existing})

	path := writeBackup(t, deps, "dup.jsonl",
		`{"filename":"new.pdf","content_hash":"`+hashOf("new")+`"}`+"\n"+
			`{"filename":"have-again.pdf","content_hash":"`+existing+`"}`+"\n")

	out, err := Import(context.Background(), deps, ImportInput{Path: path, Mode: ImportModeError})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Imported)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, string(errors.ErrDuplicate), out.Errors[0].Code)
	assert.Equal(t, 2, out.Errors[0].Line)

	s, err := Stats(context.Background(), deps.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalRecords, "nothing from the file was kept")
}

func TestImport_ErrorModeRejectsParseErrors(t *testing.T) {
	deps := newTestDeps(t)
	path := writeBackup(t, deps, "bad.jsonl", `{"filename":"a.pdf"}`+"\n{oops\n")

	out, err := Import(context.Background(), deps, ImportInput{Path: path, Mode: ImportModeError})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Imported)
	assert.Len(t, out.Errors, 1)
}

func TestImport_Validation(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	_, err := Import(ctx, deps, ImportInput{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(ctx, deps, ImportInput{Path: "x.jsonl", Mode: "replace"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(ctx, deps, ImportInput{Path: filepath.Join(ExportsDir(deps.BaseDir), "missing.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrFileNotFound), "got %v", err)
}
