package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/ops"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "ingest", "records", "settings"
	Flash   string
}

// IngestPageData is the template data for the ingest form.
type IngestPageData struct {
	PageData
	Folder                 string
	SummarizationAvailable bool
}

// IngestRowData is one streamed line of an ingest run.
type IngestRowData struct {
	Done   int
	Total  int
	Result ops.FileResult
}

// RecordsPageData is the template data for the records page.
type RecordsPageData struct {
	PageData
	Stats      record.Stats
	Items      []record.RecordSummary
	Pagination ops.Pagination

	Filename string
	Summary  string
	Sort     string
	Order    string

	// Query is the current filter query string, without "selected".
	Query string

	Selected *SelectedRecord
}

// SelectedRecord is the details panel of the records page.
type SelectedRecord struct {
	Record        *record.Record
	SummaryHTML   template.HTML
	SummaryButton string // "generate", "retry", or "unavailable"
	SummaryError  string
	DeletePending bool
}

// SettingsPageData is the template data for the settings page.
type SettingsPageData struct {
	PageData
	Provider               string
	BaseURL                string
	Model                  string
	MaskedKey              string
	SummarizationAvailable bool
	Error                  string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Code       string
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *slog.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"formatTime":  formatTime,
		"formatChars": formatChars,
		"safeHTML":    func(s string) template.HTML { return template.HTML(s) },
		"safeURL":     func(s string) template.URL { return template.URL(s) },
		"shortHash":   record.ShortHash,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"ingest":   "ingest.html",
		"records":  "records.html",
		"settings": "settings.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// page fills the common page fields.
func (r *Renderer) page(title, nav, flash string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav, Flash: flash}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	r.renderBlock(w, status, name, "layout", data)
}

// renderBlock renders a specific named block from a page template.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	var buf bytes.Buffer
	if err := r.executeBlock(&buf, page, block, data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// executeBlock writes one block straight to w. Used for streamed pages,
// where the status line has already gone out.
func (r *Renderer) executeBlock(w io.Writer, page, block string, data any) error {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("template not found", "template", page)
		return fmt.Errorf("template %q not found", page)
	}
	if err := t.ExecuteTemplate(w, block, data); err != nil {
		r.logger.Error("template execution error", "template", page, "block", block, "error", err)
		return err
	}
	return nil
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	dErr := asDeskError(err)
	if dErr.Status >= 500 {
		r.logger.Error("request failed", "path", req.URL.Path, "code", dErr.Code, "error", dErr.Message)
	}

	if wantsJSON(req) {
		renderJSONError(w, dErr)
		return
	}

	r.renderPageStatus(w, dErr.Status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", dErr.Status), "", ""),
		StatusCode: dErr.Status,
		Code:       string(dErr.Code),
		Message:    dErr.Message,
	})
}

// asDeskError returns the DeskError in err's chain, wrapping anything else as INTERNAL.
func asDeskError(err error) *errors.DeskError {
	if dErr, ok := errors.As(err); ok {
		return dErr
	}
	return errors.NewInternal(err)
}

// wantsJSON reports whether the caller is an API client rather than the UI.
func wantsJSON(req *http.Request) bool {
	return !strings.HasPrefix(req.URL.Path, "/ui") ||
		strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSONError writes the error body. "detail" mirrors the message for
// clients written against the older API.
func renderJSONError(w http.ResponseWriter, dErr *errors.DeskError) {
	renderJSON(w, dErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(dErr.Code),
			"message": dErr.Message,
			"status":  dErr.Status,
		},
		"detail": dErr.Message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the input is omitted (goldmark's default).
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// formatChars formats an integer with comma thousands separators.
func formatChars(n any) string {
	var v int64
	switch x := n.(type) {
	case int:
		v = int64(x)
	case int64:
		v = x
	default:
		return fmt.Sprint(n)
	}
	return groupThousands(v)
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	out := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range len(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digits[i])
	}
	return sign + string(out)
}
