package search

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// batchSize bounds how many documents are buffered per bleve batch during rebuilds.
const batchSize = 200

// openTimeout bounds the wait for the index file lock.
const openTimeout = "2s"

// Index wraps a Bleve full-text index over record filename, text, and summary.
type Index struct {
	index bleve.Index
}

// IndexedDocument is the shape stored in the index.
type IndexedDocument struct {
	Filename string
	Text     string
	Summary  string
}

// Hit is one search result.
type Hit struct {
	ID        int64               `json:"id"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// Open opens or creates a Bleve index at path. An empty path creates an in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	// A second process holding the index (a running server) makes Open fail
	// after openTimeout instead of blocking forever.
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"bolt_timeout": openTimeout})
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes every field, and queries, with the English
// analyzer so "agreements" finds "agreement".
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Filename", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Text", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Summary", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toDocument(r *record.Record) *IndexedDocument {
	doc := &IndexedDocument{Filename: r.Filename, Text: r.ExtractedText}
	if r.Summary != nil {
		doc.Summary = *r.Summary
	}
	return doc
}

// IndexRecord adds or replaces a record in the index.
func (i *Index) IndexRecord(r *record.Record) error {
	return i.index.Index(docID(r.ID), toDocument(r))
}

// Delete removes a record from the index. Deleting an unknown id is not an error.
func (i *Index) Delete(id int64) error {
	return i.index.Delete(docID(id))
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Search runs a query-string search (quotes, +/-, field:term, fuzzy ~).
func (i *Index) Search(queryStr string, limit int) ([]Hit, error) {
	query := bleve.NewQueryStringQuery(queryStr)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: h.Score, Fragments: h.Fragments})
	}
	return hits, nil
}

// Rebuild indexes every stored record in batches. Existing entries are replaced.
func (i *Index) Rebuild(ctx context.Context, database *sql.DB) (int, error) {
	batch := i.index.NewBatch()
	n := 0
	err := db.ListAll(ctx, database, func(r *record.Record) error {
		if err := batch.Index(docID(r.ID), toDocument(r)); err != nil {
			return err
		}
		n++
		if batch.Size() >= batchSize {
			if err := i.index.Batch(batch); err != nil {
				return err
			}
			batch.Reset()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return 0, fmt.Errorf("rebuild index: %w", err)
		}
	}
	return n, nil
}
