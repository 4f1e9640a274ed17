package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ocrdesk/internal/config"
	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/extract"
	"github.com/hpungsan/ocrdesk/internal/hasher"
	"github.com/hpungsan/ocrdesk/internal/ops"
	"github.com/hpungsan/ocrdesk/internal/record"
	"github.com/hpungsan/ocrdesk/internal/search"
	"github.com/hpungsan/ocrdesk/internal/summarize"
)

// stubSummarizer returns a small markdown summary, or err.
type stubSummarizer struct {
	err error
}

func (s *stubSummarizer) Available() bool { return true }

func (s *stubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "**Key points** of " + strings.Fields(text)[0], nil
}

// textExtractor treats a file's bytes as its OCR text.
type textExtractor struct{}

func (textExtractor) Extract(ctx context.Context, path string) (*extract.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewFileNotFound(path)
	}
	text := string(data)
	return &extract.Result{
		Text:            text,
		WordCount:       record.CountWords(text),
		CharacterLength: record.CountChars(text),
		Pages:           1,
		Method:          "test",
	}, nil
}

type testEnv struct {
	h      *Handlers
	router http.Handler
	deps   *ops.Deps
}

func setupTest(t *testing.T, s summarize.Summarizer) *testEnv {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	idx, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	deps := &ops.Deps{
		DB:         database,
		Config:     config.DefaultConfig(),
		Summarizer: s,
		Extractor:  textExtractor{},
		Index:      idx,
		Logger:     slog.New(slog.DiscardHandler),
		BaseDir:    tmpDir,
	}
	h, err := NewHandlers(deps, "test")
	require.NoError(t, err)
	router, err := NewRouter(h)
	require.NoError(t, err)
	return &testEnv{h: h, router: router, deps: deps}
}

// seed stores a record through Submit and returns its id.
func (e *testEnv) seed(t *testing.T, filename, text string) int64 {
	t.Helper()
	out, err := ops.Submit(context.Background(), e.deps, ops.SubmitInput{
		Filename:      filename,
		ExtractedText: text,
		ContentHash:   digest([]byte(filename + text)),
	})
	require.NoError(t, err)
	require.False(t, out.Skipped)
	return out.ID
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
	Detail string `json:"detail"`
}

// --- JSON API ---

func TestHandleRoot(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})

	rec := e.do(t, "GET", "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "PDF OCR Processing API", body["message"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, false, body["summarization_available"])
}

func TestHandleHealth(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	rec := e.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleProcessPDF_StoresThenSkipsDuplicate(t *testing.T) {
	e := setupTest(t, &stubSummarizer{})
	hash := digest([]byte("pdf bytes"))
	payload := `{"filename":"a.pdf","extracted_text":"hello world","word_count":2,"character_length":11,"content_hash":"` + hash + `"}`

	rec := e.do(t, "POST", "/process-pdf", strings.NewReader(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out ops.SubmitOutput
	decodeBody(t, rec, &out)
	assert.True(t, out.Success)
	assert.False(t, out.Skipped)
	assert.Equal(t, "Successfully processed a.pdf", out.Message)
	assert.Equal(t, ops.SummaryGenerated, out.SummaryStatus, "generate_summary defaults to true")

	rec = e.do(t, "POST", "/process-pdf", strings.NewReader(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &out)
	assert.True(t, out.Skipped)
	assert.Equal(t, ops.SummarySkipped, out.SummaryStatus)

	s, err := ops.Stats(context.Background(), e.deps.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalRecords)
}

func TestHandleProcessPDF_LegacyMD5Field(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	payload := `{"filename":"old.pdf","extracted_text":"x","md5_hash":"900150983CD24FB0D6963F7D28E17F72","generate_summary":false}`

	rec := e.do(t, "POST", "/process-pdf", strings.NewReader(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out ops.SubmitOutput
	decodeBody(t, rec, &out)
	assert.Equal(t, ops.SummaryNotRequested, out.SummaryStatus)

	rec = e.do(t, "GET", "/check-duplicate/900150983cd24fb0d6963f7d28e17f72", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dup ops.CheckDuplicateOutput
	decodeBody(t, rec, &dup)
	assert.True(t, dup.IsDuplicate)
	require.NotNil(t, dup.ID)
	assert.Equal(t, out.ID, *dup.ID)
}

func TestHandleProcessPDF_InvalidInput(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})

	rec := e.do(t, "POST", "/process-pdf", strings.NewReader(`{not json`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
	assert.Equal(t, 400, body.Error.Status)
	assert.Equal(t, body.Error.Message, body.Detail)

	rec = e.do(t, "POST", "/process-pdf", strings.NewReader(`{"filename":"","extracted_text":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecent_LimitAndPreview(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "a.pdf", "first")
	e.seed(t, "b.pdf", strings.Repeat("long ", 100))

	rec := e.do(t, "GET", "/records?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []record.RecordSummary
	decodeBody(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "b.pdf", items[0].Filename)
	assert.True(t, strings.HasSuffix(items[0].Preview, "..."))

	rec = e.do(t, "GET", "/records", nil)
	decodeBody(t, rec, &items)
	assert.Len(t, items, 2)
}

func TestHandleNoSummary(t *testing.T) {
	e := setupTest(t, &stubSummarizer{})
	id := e.seed(t, "a.pdf", "alpha")
	e.seed(t, "b.pdf", "beta")

	_, err := ops.RegenerateSummary(context.Background(), e.deps, id)
	require.NoError(t, err)

	rec := e.do(t, "GET", "/records/no-summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []record.RecordSummary
	decodeBody(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "b.pdf", items[0].Filename)
}

func TestHandleListRecords(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "Invoice-March.pdf", "one two three")
	e.seed(t, "receipt.pdf", "one")
	e.seed(t, "invoice-april.pdf", "one two")

	rec := e.do(t, "GET", "/records/search?filename=INVOICE&sort=word_count&order=asc&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out ops.ListOutput
	decodeBody(t, rec, &out)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "invoice-april.pdf", out.Items[0].Filename)
	assert.Equal(t, 2, out.Pagination.Total)
	assert.True(t, out.Pagination.HasMore)

	rec = e.do(t, "GET", "/records/search?sort=password", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetRecord(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	id := e.seed(t, "a.pdf", "full text here")

	rec := e.do(t, "GET", "/records/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var r record.Record
	decodeBody(t, rec, &r)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "full text here", r.ExtractedText)

	rec = e.do(t, "GET", "/records/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	rec = e.do(t, "GET", "/records/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateSummary(t *testing.T) {
	t.Run("generate", func(t *testing.T) {
		e := setupTest(t, &stubSummarizer{})
		id := e.seed(t, "a.pdf", "Quarterly numbers")

		rec := e.do(t, "PUT", "/records/1/summary?generate=true", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var r record.Record
		decodeBody(t, rec, &r)
		assert.Equal(t, id, r.ID)
		require.NotNil(t, r.Summary)
		assert.Equal(t, "**Key points** of Quarterly", *r.Summary)
	})

	t.Run("unavailable", func(t *testing.T) {
		e := setupTest(t, summarize.Disabled{})
		e.seed(t, "a.pdf", "text")

		rec := e.do(t, "PUT", "/records/1/summary?generate=true", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body errorBody
		decodeBody(t, rec, &body)
		assert.Equal(t, "SUMMARIZATION_UNAVAILABLE", body.Error.Code)
	})

	t.Run("failed", func(t *testing.T) {
		e := setupTest(t, &stubSummarizer{err: errors.NewSummarizationFailed(io.ErrUnexpectedEOF)})
		e.seed(t, "a.pdf", "text")

		rec := e.do(t, "PUT", "/records/1/summary?generate=true", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("explicit text", func(t *testing.T) {
		e := setupTest(t, summarize.Disabled{})
		e.seed(t, "a.pdf", "text")

		rec := e.do(t, "PUT", "/records/1/summary", strings.NewReader(`{"summary":"hand written"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var r record.Record
		decodeBody(t, rec, &r)
		require.NotNil(t, r.Summary)
		assert.Equal(t, "hand written", *r.Summary)

		rec = e.do(t, "PUT", "/records/1/summary", strings.NewReader(`{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing record", func(t *testing.T) {
		e := setupTest(t, summarize.Disabled{})
		rec := e.do(t, "PUT", "/records/7/summary", strings.NewReader(`{"summary":"x"}`))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		s, err := ops.Stats(context.Background(), e.deps.DB)
		require.NoError(t, err)
		assert.Equal(t, int64(0), s.TotalRecords, "no row created as a side effect")
	})
}

func TestHandleDeleteRecord_SecondDeleteIsNotFound(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "a.pdf", "text")

	rec := e.do(t, "DELETE", "/records/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out ops.DeleteOutput
	decodeBody(t, rec, &out)
	assert.True(t, out.Deleted)

	rec = e.do(t, "DELETE", "/records/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStats(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "a.pdf", "one two")
	e.seed(t, "b.pdf", "three")

	rec := e.do(t, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_records":2,"total_words":3,"total_characters":12}`, rec.Body.String())
}

func TestHandleSearch(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "lease.pdf", "The tenant pays rent monthly")
	e.seed(t, "memo.pdf", "Staff meeting notes")

	rec := e.do(t, "GET", "/search?q=tenant", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out ops.SearchOutput
	decodeBody(t, rec, &out)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "lease.pdf", out.Items[0].Filename)

	rec = e.do(t, "GET", "/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.do(t, "GET", "/stats", nil)

	rec := e.do(t, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ocrdesk_http_requests_total")
	assert.Contains(t, body, `route="/stats"`)
}

func TestSecurityHeaders(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	rec := e.do(t, "GET", "/ui/records", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

// --- HTML UI ---

// uiClient talks to a live test server and keeps the session cookie.
func uiClient(t *testing.T, e *testEnv) (*http.Client, string) {
	t.Helper()
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}, srv.URL
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRecordsPage_ListAndDetails(t *testing.T) {
	e := setupTest(t, &stubSummarizer{})
	id := e.seed(t, "contract.pdf", "Parties agree")
	_, err := ops.RegenerateSummary(context.Background(), e.deps, id)
	require.NoError(t, err)

	rec := e.do(t, "GET", "/ui/records", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "contract.pdf")
	assert.NotContains(t, body, "Extracted text", "no details panel without selection")

	rec = e.do(t, "GET", "/ui/records?selected=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "Parties agree")
	assert.Contains(t, body, "<strong>Key points</strong>", "summary rendered as markdown")
	assert.Contains(t, body, "Regenerate summary")
	assert.Contains(t, body, ">Delete<")
}

func TestRecordsPage_SummaryButtonStates(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		e := setupTest(t, summarize.Disabled{})
		e.seed(t, "a.pdf", "text")

		rec := e.do(t, "GET", "/ui/records?selected=1", nil)
		assert.Contains(t, rec.Body.String(), "Summarization unavailable")
		assert.NotContains(t, rec.Body.String(), "Try again")
	})

	t.Run("failed then retry", func(t *testing.T) {
		e := setupTest(t, &stubSummarizer{err: errors.NewSummarizationFailed(io.ErrUnexpectedEOF)})
		e.seed(t, "a.pdf", "text")
		client, base := uiClient(t, e)

		resp, err := client.PostForm(base+"/ui/records/1/summary", url.Values{"return": {""}})
		require.NoError(t, err)
		body := readAll(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Try again")
		assert.Contains(t, body, "Summary failed")

		// Record still there without a summary
		r, err := ops.Fetch(context.Background(), e.deps.DB, ops.FetchInput{ID: 1})
		require.NoError(t, err)
		assert.Nil(t, r.Summary)
	})
}

func TestRecordsPage_TwoClickDelete(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "keep.pdf", "one")
	e.seed(t, "drop.pdf", "two")
	client, base := uiClient(t, e)

	resp, err := client.Get(base + "/ui/records?selected=2")
	require.NoError(t, err)
	readAll(t, resp)

	// First click arms
	resp, err = client.PostForm(base+"/ui/records/2/delete", url.Values{"return": {""}})
	require.NoError(t, err)
	body := readAll(t, resp)
	assert.Contains(t, body, "Confirm delete")
	_, err = ops.Fetch(context.Background(), e.deps.DB, ops.FetchInput{ID: 2})
	require.NoError(t, err, "first click does not delete")

	// Second click on the same selected record deletes
	resp, err = client.PostForm(base+"/ui/records/2/delete", url.Values{"return": {""}})
	require.NoError(t, err)
	body = readAll(t, resp)
	assert.Contains(t, body, "Record 2 deleted")
	assert.NotContains(t, body, "drop.pdf")

	_, err = ops.Fetch(context.Background(), e.deps.DB, ops.FetchInput{ID: 2})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRecordsPage_SelectingAnotherRecordDisarmsDelete(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "a.pdf", "one")
	e.seed(t, "b.pdf", "two")
	client, base := uiClient(t, e)

	resp, err := client.PostForm(base+"/ui/records/1/delete", url.Values{"return": {""}})
	require.NoError(t, err)
	assert.Contains(t, readAll(t, resp), "Confirm delete")

	resp, err = client.Get(base + "/ui/records?selected=2")
	require.NoError(t, err)
	readAll(t, resp)

	resp, err = client.Get(base + "/ui/records?selected=1")
	require.NoError(t, err)
	assert.NotContains(t, readAll(t, resp), "Confirm delete")

	// The next click arms again instead of deleting
	resp, err = client.PostForm(base+"/ui/records/1/delete", url.Values{"return": {""}})
	require.NoError(t, err)
	readAll(t, resp)
	_, err = ops.Fetch(context.Background(), e.deps.DB, ops.FetchInput{ID: 1})
	assert.NoError(t, err)
}

func TestRecordsPage_CancelDelete(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	e.seed(t, "a.pdf", "one")
	client, base := uiClient(t, e)

	resp, err := client.PostForm(base+"/ui/records/1/delete", url.Values{"return": {""}})
	require.NoError(t, err)
	readAll(t, resp)

	resp, err = client.PostForm(base+"/ui/records/1/delete/cancel", url.Values{"return": {""}})
	require.NoError(t, err)
	body := readAll(t, resp)
	assert.NotContains(t, body, "Confirm delete")
	assert.Contains(t, body, ">Delete<")
}

func TestIngestPage_FolderStreamsResults(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("alpha text"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("beta text"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy.pdf"), []byte("alpha text"), 0600))

	form := url.Values{"folder": {dir}}
	req := httptest.NewRequest("POST", "/ui/ingest", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Ingesting 3 files")
	assert.Contains(t, body, "3/3")
	assert.Contains(t, body, "<strong>2</strong> stored")
	assert.Contains(t, body, "<strong>1</strong> skipped")
	assert.Contains(t, body, "duplicate content")
}

func TestIngestPage_Upload(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "Scan 01.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("uploaded words"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/ui/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>1</strong> stored")

	r, err := ops.Fetch(context.Background(), e.deps.DB, ops.FetchInput{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "Scan 01.pdf", r.Filename)
	assert.Equal(t, "uploaded words", r.ExtractedText)
}

func TestIngestPage_FormErrors(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})

	req := httptest.NewRequest("POST", "/ui/ingest", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Choose a folder")

	form := url.Values{"folder": {filepath.Join(t.TempDir(), "missing")}}
	req = httptest.NewRequest("POST", "/ui/ingest", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsPage_SaveAndMask(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	client, base := uiClient(t, e)

	resp, err := client.PostForm(base+"/ui/settings", url.Values{
		"provider": {"openai"},
		"base_url": {"http://localhost:11434/v1"},
		"model":    {"llama3"},
		"api_key":  {"sk-test-1234567890"},
	})
	require.NoError(t, err)
	body := readAll(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Settings saved")
	assert.Contains(t, body, "sk-...7890")
	assert.NotContains(t, body, "sk-test-1234567890")

	saved, err := config.Load(e.deps.BaseDir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", saved.LLMBaseURL)
	assert.Equal(t, "llama3", saved.LLMModel)
	assert.Equal(t, "sk-test-1234567890", saved.LLMAPIKey)
}

func TestSettingsPage_RejectsBadURL(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})

	form := url.Values{"base_url": {"ftp://example.com"}}
	req := httptest.NewRequest("POST", "/ui/settings", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err := os.Stat(filepath.Join(e.deps.BaseDir, "config.json"))
	assert.True(t, os.IsNotExist(err), "nothing saved")
}

func TestUIErrorPage(t *testing.T) {
	e := setupTest(t, summarize.Disabled{})
	req := httptest.NewRequest("POST", "/ui/records/0/delete", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Error 400")
}

func TestFormatChars(t *testing.T) {
	assert.Equal(t, "0", formatChars(0))
	assert.Equal(t, "999", formatChars(999))
	assert.Equal(t, "1,000", formatChars(1000))
	assert.Equal(t, "1,234,567", formatChars(int64(1234567)))
	assert.Equal(t, "-12,345", formatChars(-12345))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "********", maskKey("short"))
	assert.Equal(t, "sk-...wxyz", maskKey("sk-abcdefwxyz"))
}

// digest hashes an in-memory payload the way HashFile hashes a file.
func digest(b []byte) string {
	h, err := hasher.HashReader(strings.NewReader(string(b)))
	if err != nil {
		panic(err)
	}
	return h
}
