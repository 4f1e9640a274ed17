package ops

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// MaxQueryLength bounds full-text queries.
const MaxQueryLength = 1000

// snippetFields are tried in order when picking a match snippet.
var snippetFields = []string{"Text", "Summary", "Filename"}

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query string // required
	Limit int    // default: 20, max: 100
}

// SearchResultItem wraps a RecordSummary with its relevance and a match snippet.
type SearchResultItem struct {
	record.RecordSummary
	Score float64 `json:"score"`
	// Snippet is highlighted HTML produced by the index; matches are wrapped in <mark>.
	Snippet string `json:"snippet,omitempty"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items []SearchResultItem `json:"items"`
	Query string             `json:"query"`
}

// Search runs a full-text query and hydrates the hits from the store.
// Hits whose record no longer exists are dropped.
func Search(ctx context.Context, deps *Deps, input SearchInput) (*SearchOutput, error) {
	if deps.Index == nil {
		return nil, errors.NewInvalidRequest("full-text search is disabled")
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}
	limit := clampLimit(input.Limit, DefaultSearchLimit, MaxSearchLimit)

	hits, err := deps.Index.Search(query, limit)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	items := make([]SearchResultItem, 0, len(hits))
	for _, h := range hits {
		r, err := db.GetByID(ctx, deps.DB, h.ID)
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, SearchResultItem{
			RecordSummary: r.ToSummary(),
			Score:         h.Score,
			Snippet:       pickSnippet(h.Fragments),
		})
	}

	return &SearchOutput{Items: items, Query: query}, nil
}

func pickSnippet(fragments map[string][]string) string {
	for _, field := range snippetFields {
		if f := fragments[field]; len(f) > 0 {
			return f[0]
		}
	}
	return ""
}

// ReindexOutput contains the result of the Reindex operation.
type ReindexOutput struct {
	Indexed int `json:"indexed"`
}

// Reindex rebuilds the full-text index from the store.
func Reindex(ctx context.Context, deps *Deps) (*ReindexOutput, error) {
	if deps.Index == nil {
		return nil, errors.NewInvalidRequest("full-text search is disabled")
	}
	n, err := deps.Index.Rebuild(ctx, deps.DB)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	deps.logger().Info("search index rebuilt", "records", n)
	return &ReindexOutput{Indexed: n}, nil
}

// EnsureIndex rebuilds the index when it holds fewer documents than the store,
// which happens after the index directory is removed or a legacy database is opened.
func EnsureIndex(ctx context.Context, deps *Deps) error {
	if deps.Index == nil {
		return nil
	}
	stats, err := db.Stats(ctx, deps.DB)
	if err != nil {
		return err
	}
	n, err := deps.Index.Count()
	if err != nil {
		return errors.NewInternal(err)
	}
	if int64(n) >= stats.TotalRecords {
		return nil
	}
	_, err = Reindex(ctx, deps)
	return err
}

// indexRecord keeps the index in step with the store. Index failures are
// logged and never fail the store operation.
func (d *Deps) indexRecord(r *record.Record) {
	if d.Index == nil {
		return
	}
	if err := d.Index.IndexRecord(r); err != nil {
		d.logger().Warn("index record", "id", r.ID, "error", err)
	}
}

func (d *Deps) deindex(id int64) {
	if d.Index == nil {
		return
	}
	if err := d.Index.Delete(id); err != nil {
		d.logger().Warn("remove record from index", "id", id, "error", err)
	}
}
