package ops

import (
	"database/sql"
	"io"
	"log/slog"
	"strings"

	"github.com/hpungsan/ocrdesk/internal/config"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/extract"
	"github.com/hpungsan/ocrdesk/internal/hasher"
	"github.com/hpungsan/ocrdesk/internal/search"
	"github.com/hpungsan/ocrdesk/internal/summarize"
)

// Pagination limits
const (
	DefaultListLimit      = 20
	MaxListLimit          = 100
	DefaultRecentLimit    = 10
	MaxRecentLimit        = 100
	DefaultNoSummaryLimit = 100
	MaxNoSummaryLimit     = 1000
	DefaultSearchLimit    = 20
	MaxSearchLimit        = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps bundles the collaborators of the multi-step operations.
// Index is nil when full-text search is disabled.
type Deps struct {
	DB         *sql.DB
	Config     *config.Config
	Summarizer summarize.Summarizer
	Extractor  extract.Extractor
	Index      *search.Index
	Logger     *slog.Logger

	// BaseDir holds the database and the default exports directory.
	BaseDir string
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (d *Deps) summarizer() summarize.Summarizer {
	if d.Summarizer != nil {
		return d.Summarizer
	}
	return summarize.Disabled{}
}

// clampLimit applies a default to non-positive limits and caps the rest.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// normalizeHash lowercases and trims a client-supplied digest.
// An empty hash is allowed; a non-empty one must be well formed.
func normalizeHash(hash string) (string, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return "", nil
	}
	if !hasher.ValidClient(hash) {
		return "", errors.NewInvalidRequest("content_hash must be a hex digest")
	}
	return hash, nil
}
