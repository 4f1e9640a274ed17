package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

func TestSearch_FindsSubmittedText(t *testing.T) {
	deps := newTestDeps(t)
	submitText(t, deps, "invoice.pdf", "Payment due for consulting services")
	submitText(t, deps, "lease.pdf", "Tenant agrees to monthly rent")

	out, err := Search(context.Background(), deps, SearchInput{Query: "consulting"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "invoice.pdf", out.Items[0].Filename)
	assert.Positive(t, out.Items[0].Score)
	assert.Contains(t, out.Items[0].Snippet, "consulting")
}

func TestSearch_SummaryIsIndexedAfterGeneration(t *testing.T) {
	deps := newTestDeps(t)
	_, err := Submit(context.Background(), deps, SubmitInput{
		Filename:        "memo.pdf",
		ExtractedText:   "Xylophone budget",
		ContentHash:     hashOf("memo"),
		GenerateSummary: true,
	})
	require.NoError(t, err)

	// The fake summary is "summary: Xylophone"; "summary" appears only there
	out, err := Search(context.Background(), deps, SearchInput{Query: "summary"})
	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
}

func TestSearch_DropsHitsMissingFromStore(t *testing.T) {
	deps := newTestDeps(t)
	kept := submitText(t, deps, "a.pdf", "shared keyword alpha")
	require.NoError(t, deps.Index.IndexRecord(&record.Record{ID: 4242, Filename: "ghost.pdf", ExtractedText: "shared keyword"}))

	out, err := Search(context.Background(), deps, SearchInput{Query: "keyword"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, kept.ID, out.Items[0].ID)
}

func TestSearch_DeleteRemovesFromIndex(t *testing.T) {
	deps := newTestDeps(t)
	out := submitText(t, deps, "a.pdf", "ephemeral words")

	_, err := Delete(context.Background(), deps, out.ID)
	require.NoError(t, err)

	n, err := deps.Index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestSearch_Validation(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	_, err := Search(ctx, deps, SearchInput{Query: "   "})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	deps.Index = nil
	_, err = Search(ctx, deps, SearchInput{Query: "x"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestEnsureIndex_RebuildsEmptyIndex(t *testing.T) {
	deps := newTestDeps(t)
	seedRecords(t, deps,
		record.Record{Filename: "a.pdf", ExtractedText: "legacy row one"},
		record.Record{Filename: "b.pdf", ExtractedText: "legacy row two"},
	)

	n, err := deps.Index.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(0), n, "seeded straight into the store")

	require.NoError(t, EnsureIndex(context.Background(), deps))

	out, err := Search(context.Background(), deps, SearchInput{Query: "legacy"})
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
}
