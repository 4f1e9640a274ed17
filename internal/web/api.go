package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/ops"
)

// maxBodyBytes bounds JSON request bodies; extracted text of a long scan
// is the largest thing a client sends.
const maxBodyBytes = 64 << 20

// processPDFRequest is the body of POST /process-pdf.
type processPDFRequest struct {
	Filename        string `json:"filename"`
	ExtractedText   string `json:"extracted_text"`
	WordCount       int    `json:"word_count"`
	CharacterLength int    `json:"character_length"`
	ContentHash     string `json:"content_hash"`
	// MD5Hash is the field name older clients send.
	MD5Hash         string `json:"md5_hash"`
	GenerateSummary *bool  `json:"generate_summary"`
}

// HandleRoot handles GET /: API banner and capabilities.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"message":                 "PDF OCR Processing API",
		"version":                 h.version,
		"summarization_available": h.summarizationAvailable(),
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DB.PingContext(r.Context()); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleProcessPDF handles POST /process-pdf: store one extraction result.
func (h *Handlers) HandleProcessPDF(w http.ResponseWriter, r *http.Request) {
	var req processPDFRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	hash := req.ContentHash
	if hash == "" {
		hash = req.MD5Hash
	}
	generate := true
	if req.GenerateSummary != nil {
		generate = *req.GenerateSummary
	}

	out, err := ops.Submit(r.Context(), h.deps, ops.SubmitInput{
		Filename:        req.Filename,
		ExtractedText:   req.ExtractedText,
		WordCount:       req.WordCount,
		CharacterLength: req.CharacterLength,
		ContentHash:     hash,
		GenerateSummary: generate,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleCheckDuplicate handles GET /check-duplicate/{hash}.
func (h *Handlers) HandleCheckDuplicate(w http.ResponseWriter, r *http.Request) {
	out, err := ops.CheckDuplicate(r.Context(), h.deps, chi.URLParam(r, "hash"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleRecent handles GET /records: newest records first.
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	items, err := ops.Recent(r.Context(), h.deps.DB, parseIntParam(r, "limit", 0))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, items)
}

// HandleNoSummary handles GET /records/no-summary: records still lacking a summary.
func (h *Handlers) HandleNoSummary(w http.ResponseWriter, r *http.Request) {
	items, err := ops.NoSummary(r.Context(), h.deps.DB, parseIntParam(r, "limit", 0))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, items)
}

// HandleListRecords handles GET /records/search: filtered, sorted, paginated listing.
func (h *Handlers) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	out, err := ops.List(r.Context(), h.deps.DB, listInputFromQuery(r))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleGetRecord handles GET /records/{id}.
func (h *Handlers) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	input := ops.FetchInput{ID: id}
	if v := r.URL.Query().Get("include_text"); v != "" {
		include := parseBoolParam(r, "include_text")
		input.IncludeText = &include
	}

	rec, err := ops.Fetch(r.Context(), h.deps.DB, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, rec)
}

// HandleUpdateSummary handles PUT /records/{id}/summary.
// With ?generate=true the summary is regenerated from the stored text;
// otherwise the body {"summary": "..."} is stored as is.
func (h *Handlers) HandleUpdateSummary(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if parseBoolParam(r, "generate") {
		rec, err := ops.RegenerateSummary(r.Context(), h.deps, id)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, rec)
		return
	}

	var body struct {
		Summary *string `json:"summary"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if body.Summary == nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("summary is required unless generate=true"))
		return
	}

	rec, err := ops.SetSummary(r.Context(), h.deps, id, *body.Summary)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, rec)
}

// HandleDeleteRecord handles DELETE /records/{id}.
func (h *Handlers) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	out, err := ops.Delete(r.Context(), h.deps, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleStats handles GET /stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := ops.Stats(r.Context(), h.deps.DB)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, stats)
}

// HandleSearch handles GET /search?q=: full-text search.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Search(r.Context(), h.deps, ops.SearchInput{
		Query: r.URL.Query().Get("q"),
		Limit: parseIntParam(r, "limit", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// listInputFromQuery maps the list query parameters onto ops.ListInput.
func listInputFromQuery(r *http.Request) ops.ListInput {
	q := r.URL.Query()
	return ops.ListInput{
		FilenameContains: strings.TrimSpace(q.Get("filename")),
		Summary:          q.Get("summary"),
		SortBy:           q.Get("sort"),
		Order:            q.Get("order"),
		Limit:            parseIntParam(r, "limit", 0),
		Offset:           parseIntParam(r, "offset", 0),
	}
}

// parseID reads the {id} route parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest("id must be a positive integer")
	}
	return id, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
