package web

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hpungsan/ocrdesk/internal/config"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/ops"
	"github.com/hpungsan/ocrdesk/internal/record"
)

// maxUploadMemory is how much of a multipart upload is buffered in memory
// before spilling to temp files.
const maxUploadMemory = 32 << 20

// Handlers contains HTTP route handlers for the JSON API and the web UI.
type Handlers struct {
	deps     *ops.Deps
	renderer *Renderer
	sessions *SessionStore
	logger   *slog.Logger
	version  string
}

func (h *Handlers) summarizationAvailable() bool {
	return h.deps.Summarizer != nil && h.deps.Summarizer.Available()
}

// IngestRunData is the template data for a streamed ingest run.
type IngestRunData struct {
	PageData
	Total  int
	Report *ops.BatchReport
}

// HandleIngestPage handles GET /ui/ingest: the folder/upload form.
func (h *Handlers) HandleIngestPage(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	sess.Lock()
	sess.Delete.Navigate()
	flash := sess.TakeFlash()
	sess.Unlock()

	h.renderer.renderPage(w, "ingest", IngestPageData{
		PageData:               h.renderer.page("Ingest documents", "ingest", flash),
		SummarizationAvailable: h.summarizationAvailable(),
	})
}

// HandleIngestRun handles POST /ui/ingest. It processes a server-side folder
// or uploaded files one at a time and streams a row per file, so the page
// itself is the progress indicator.
func (h *Handlers) HandleIngestRun(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			h.ingestFormError(w, http.StatusBadRequest, "", "invalid upload: "+err.Error())
			return
		}
		defer r.MultipartForm.RemoveAll()
	} else if err := r.ParseForm(); err != nil {
		h.ingestFormError(w, http.StatusBadRequest, "", "invalid form data")
		return
	}

	folder := strings.TrimSpace(r.FormValue("folder"))
	summarize := r.FormValue("summarize") != ""

	var (
		paths     []string
		filenames []string
	)
	switch {
	case folder != "":
		found, err := ops.ScanDirectory(folder)
		if err != nil {
			dErr := asDeskError(err)
			h.ingestFormError(w, dErr.Status, folder, dErr.Message)
			return
		}
		if len(found) == 0 {
			h.ingestFormError(w, http.StatusOK, folder, "No PDF files found in "+folder)
			return
		}
		paths = found

	case r.MultipartForm != nil && len(r.MultipartForm.File["files"]) > 0:
		dir, err := os.MkdirTemp("", "ocrdesk-upload-*")
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInternal(err))
			return
		}
		defer os.RemoveAll(dir)

		for i, fh := range r.MultipartForm.File["files"] {
			path, err := saveUpload(fh, dir, i)
			if err != nil {
				h.renderer.renderError(w, r, errors.NewInternal(err))
				return
			}
			paths = append(paths, path)
			filenames = append(filenames, filepath.Base(fh.Filename))
		}

	default:
		h.ingestFormError(w, http.StatusBadRequest, "", "Choose a folder or upload at least one PDF")
		return
	}

	data := IngestRunData{
		PageData: h.renderer.page("Ingesting", "ingest", ""),
		Total:    len(paths),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	if err := h.renderer.executeBlock(w, "ingest", "run-head", data); err != nil {
		return
	}
	_ = rc.Flush()

	report := ops.IngestBatch(r.Context(), h.deps, ops.IngestBatchInput{
		Paths:           paths,
		Filenames:       filenames,
		GenerateSummary: summarize,
		Progress: func(done, total int, result ops.FileResult) {
			_ = h.renderer.executeBlock(w, "ingest", "run-row", IngestRowData{Done: done, Total: total, Result: result})
			_ = rc.Flush()
		},
	})

	data.Report = report
	_ = h.renderer.executeBlock(w, "ingest", "run-foot", data)
}

func (h *Handlers) ingestFormError(w http.ResponseWriter, status int, folder, msg string) {
	h.renderer.renderPageStatus(w, status, "ingest", IngestPageData{
		PageData:               h.renderer.page("Ingest documents", "ingest", msg),
		Folder:                 folder,
		SummarizationAvailable: h.summarizationAvailable(),
	})
}

// saveUpload copies one uploaded part into dir. The temp name is positional;
// the client's file name is kept separately for the stored record.
func saveUpload(fh *multipart.FileHeader, dir string, i int) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(dir, fmt.Sprintf("upload-%03d.pdf", i))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return path, dst.Close()
}

// HandleRecordsPage handles GET /ui/records: stats, filtered table and,
// with ?selected=ID, the details panel.
func (h *Handlers) HandleRecordsPage(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	sess.Lock()
	defer sess.Unlock()

	input := listInputFromQuery(r)
	list, err := ops.List(r.Context(), h.deps.DB, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	stats, err := ops.Stats(r.Context(), h.deps.DB)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	q := r.URL.Query()
	q.Del("selected")
	data := RecordsPageData{
		PageData:   h.renderer.page("Records", "records", ""),
		Stats:      stats,
		Items:      list.Items,
		Pagination: list.Pagination,
		Filename:   input.FilenameContains,
		Summary:    input.Summary,
		Sort:       input.SortBy,
		Order:      input.Order,
		Query:      q.Encode(),
	}

	if selected := int64(parseIntParam(r, "selected", 0)); selected > 0 {
		sess.Delete.Select(selected)
		rec, err := ops.Fetch(r.Context(), h.deps.DB, ops.FetchInput{ID: selected})
		switch {
		case errors.Is(err, errors.ErrNotFound):
			sess.Delete.Navigate()
			sess.SetFlash(fmt.Sprintf("Record %d no longer exists", selected))
		case err != nil:
			h.renderer.renderError(w, r, err)
			return
		default:
			data.Selected = h.selectedRecord(sess, rec)
		}
	} else {
		sess.Delete.Navigate()
	}

	data.Flash = sess.TakeFlash()
	h.renderer.renderPage(w, "records", data)
}

func (h *Handlers) selectedRecord(sess *Session, rec *record.Record) *SelectedRecord {
	sel := &SelectedRecord{
		Record:        rec,
		DeletePending: sess.Delete.Pending(rec.ID),
		SummaryButton: "generate",
	}
	if rec.HasSummary() {
		sel.SummaryHTML = renderMarkdown(*rec.Summary)
	}
	switch msg, failed := sess.SummaryFailed(rec.ID); {
	case !h.summarizationAvailable():
		sel.SummaryButton = "unavailable"
	case failed:
		sel.SummaryButton = "retry"
		sel.SummaryError = msg
	}
	return sel
}

// HandleUISummary handles POST /ui/records/{id}/summary: generate or retry a summary.
func (h *Handlers) HandleUISummary(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	sess := h.sessions.Get(w, r)

	_, err = ops.RegenerateSummary(r.Context(), h.deps, id)

	sess.Lock()
	switch {
	case err == nil:
		sess.SetSummaryFailed(id, "")
		sess.SetFlash("Summary generated")
	case errors.Is(err, errors.ErrSummarizationUnavailable):
		sess.SetFlash("Summarization is not configured")
	case errors.Is(err, errors.ErrNotFound):
		sess.SetFlash(fmt.Sprintf("Record %d no longer exists", id))
	default:
		msg := asDeskError(err).Message
		sess.SetSummaryFailed(id, msg)
		sess.SetFlash("Summary failed: " + msg)
	}
	sess.Unlock()

	http.Redirect(w, r, recordsURL(r, id), http.StatusSeeOther)
}

// HandleUIDelete handles POST /ui/records/{id}/delete. The first press arms
// the delete; a second press on the same selected record performs it.
func (h *Handlers) HandleUIDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	sess := h.sessions.Get(w, r)
	sess.Lock()
	defer sess.Unlock()

	if !sess.Delete.Click(id) {
		http.Redirect(w, r, recordsURL(r, id), http.StatusSeeOther)
		return
	}

	out, err := ops.Delete(r.Context(), h.deps, id)
	if err != nil {
		sess.Delete.Cancel()
		sess.SetFlash("Delete failed: " + asDeskError(err).Message)
		http.Redirect(w, r, recordsURL(r, 0), http.StatusSeeOther)
		return
	}
	sess.Delete.MarkDeleted()
	sess.SetSummaryFailed(id, "")
	sess.SetFlash(fmt.Sprintf("Record %d deleted", out.ID))
	http.Redirect(w, r, recordsURL(r, 0), http.StatusSeeOther)
}

// HandleUIDeleteCancel handles POST /ui/records/{id}/delete/cancel.
func (h *Handlers) HandleUIDeleteCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	sess := h.sessions.Get(w, r)
	sess.Lock()
	sess.Delete.Cancel()
	sess.Unlock()

	http.Redirect(w, r, recordsURL(r, id), http.StatusSeeOther)
}

// recordsURL builds the records page URL from the form's "return" query,
// with selected set to id (or removed when id is 0).
func recordsURL(r *http.Request, id int64) string {
	q, err := url.ParseQuery(r.FormValue("return"))
	if err != nil {
		q = url.Values{}
	}
	q.Del("selected")
	if id > 0 {
		q.Set("selected", strconv.FormatInt(id, 10))
	}
	if len(q) == 0 {
		return "/ui/records"
	}
	return "/ui/records?" + q.Encode()
}

// HandleSettingsPage handles GET /ui/settings.
func (h *Handlers) HandleSettingsPage(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	sess.Lock()
	sess.Delete.Navigate()
	flash := sess.TakeFlash()
	sess.Unlock()

	saved, err := config.Load(h.deps.BaseDir)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	h.renderSettings(w, http.StatusOK, saved, flash, "")
}

// HandleSettingsSave handles POST /ui/settings. The file is rewritten;
// the running process keeps its configuration until restarted.
func (h *Handlers) HandleSettingsSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	saved, err := config.Load(h.deps.BaseDir)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}

	if v := strings.TrimSpace(r.FormValue("provider")); v != "" {
		saved.LLMProvider = v
	}
	if v := strings.TrimSpace(r.FormValue("base_url")); v != "" {
		saved.LLMBaseURL = v
	}
	if v := strings.TrimSpace(r.FormValue("model")); v != "" {
		saved.LLMModel = v
	}
	switch {
	case r.FormValue("clear_key") != "":
		saved.LLMAPIKey = ""
	case strings.TrimSpace(r.FormValue("api_key")) != "":
		saved.LLMAPIKey = strings.TrimSpace(r.FormValue("api_key"))
	}

	if err := saved.Validate(); err != nil {
		h.renderSettings(w, http.StatusBadRequest, saved, "", err.Error())
		return
	}
	if err := config.Save(h.deps.BaseDir, saved); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	h.logger.Info("settings saved", "provider", saved.LLMProvider, "model", saved.LLMModel)

	sess := h.sessions.Get(w, r)
	sess.Lock()
	sess.SetFlash("Settings saved. Restart ocrdesk to apply them.")
	sess.Unlock()
	http.Redirect(w, r, "/ui/settings", http.StatusSeeOther)
}

func (h *Handlers) renderSettings(w http.ResponseWriter, status int, saved *config.Config, flash, formErr string) {
	masked := maskKey(saved.LLMAPIKey)
	if masked == "" && h.deps.Config.LLMAPIKey != "" {
		masked = "set via environment"
	}
	h.renderer.renderPageStatus(w, status, "settings", SettingsPageData{
		PageData:               h.renderer.page("Settings", "settings", flash),
		Provider:               saved.LLMProvider,
		BaseURL:                saved.LLMBaseURL,
		Model:                  saved.LLMModel,
		MaskedKey:              masked,
		SummarizationAvailable: h.summarizationAvailable(),
		Error:                  formErr,
	})
}

// maskKey shows only the ends of a credential.
func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "********"
	default:
		return key[:3] + "..." + key[len(key)-4:]
	}
}
