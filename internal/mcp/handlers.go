package mcp

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/hasher"
	"github.com/hpungsan/ocrdesk/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps *ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// ListRequest represents the arguments for record_list.
type ListRequest struct {
	Filename string `json:"filename,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Sort     string `json:"sort,omitempty"`
	Order    string `json:"order,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// LimitRequest represents the arguments for record_recent and record_no_summary.
type LimitRequest struct {
	Limit int `json:"limit,omitempty"`
}

// GetRequest represents the arguments for record_get.
type GetRequest struct {
	ID          int64 `json:"id"`
	IncludeText *bool `json:"include_text,omitempty"`
}

// IDRequest represents the arguments for tools addressing one record.
type IDRequest struct {
	ID int64 `json:"id"`
}

// SearchRequest represents the arguments for record_search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// CheckDuplicateRequest represents the arguments for record_check_duplicate.
type CheckDuplicateRequest struct {
	Hash string `json:"hash,omitempty"`
	Path string `json:"path,omitempty"`
}

// CheckDuplicateResponse adds the digest that was looked up.
type CheckDuplicateResponse struct {
	*ops.CheckDuplicateOutput
	ContentHash string `json:"content_hash"`
}

// IngestRequest represents the arguments for record_ingest.
type IngestRequest struct {
	Path            string `json:"path"`
	GenerateSummary bool   `json:"generate_summary,omitempty"`
}

// ExportRequest represents the arguments for record_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for record_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Handler implementations

// HandleList handles the record_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	out, err := ops.List(ctx, h.deps.DB, ops.ListInput{
		FilenameContains: strings.TrimSpace(input.Filename),
		Summary:          input.Summary,
		SortBy:           input.Sort,
		Order:            input.Order,
		Limit:            input.Limit,
		Offset:           input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleRecent handles the record_recent tool call.
func (h *Handlers) HandleRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	items, err := ops.Recent(ctx, h.deps.DB, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": items})
}

// HandleNoSummary handles the record_no_summary tool call.
func (h *Handlers) HandleNoSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LimitRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	items, err := ops.NoSummary(ctx, h.deps.DB, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": items})
}

// HandleGet handles the record_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	rec, err := ops.Fetch(ctx, h.deps.DB, ops.FetchInput{ID: input.ID, IncludeText: input.IncludeText})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(rec)
}

// HandleStats handles the record_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := ops.Stats(ctx, h.deps.DB)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(stats)
}

// HandleSearch handles the record_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := ops.Search(ctx, h.deps, ops.SearchInput{Query: input.Query, Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleCheckDuplicate handles the record_check_duplicate tool call.
// Exactly one of hash or path must be given.
func (h *Handlers) HandleCheckDuplicate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckDuplicateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	hash := strings.TrimSpace(input.Hash)
	path := strings.TrimSpace(input.Path)
	switch {
	case hash != "" && path != "":
		return errorResult(errors.NewInvalidRequest("pass either hash or path, not both")), nil
	case path != "":
		hash, err = hasher.HashFile(path)
		if err != nil {
			return errorResult(err), nil
		}
	case hash == "":
		return errorResult(errors.NewInvalidRequest("hash or path is required")), nil
	}

	out, err := ops.CheckDuplicate(ctx, h.deps, hash)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(CheckDuplicateResponse{CheckDuplicateOutput: out, ContentHash: strings.ToLower(hash)})
}

// HandleSummarize handles the record_summarize tool call.
func (h *Handlers) HandleSummarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	rec, err := ops.RegenerateSummary(ctx, h.deps, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(rec)
}

// HandleDelete handles the record_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := ops.Delete(ctx, h.deps, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleIngest handles the record_ingest tool call. A directory is ingested
// as a batch; a single file returns its own result.
func (h *Handlers) HandleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IngestRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	info, err := os.Stat(input.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult(errors.NewFileNotFound(input.Path)), nil
		}
		return errorResult(errors.NewInternal(err)), nil
	}

	if !info.IsDir() {
		res, err := ops.IngestFile(ctx, h.deps, ops.IngestFileInput{
			Path:            input.Path,
			GenerateSummary: input.GenerateSummary,
		})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(res)
	}

	paths, err := ops.ScanDirectory(input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	report := ops.IngestBatch(ctx, h.deps, ops.IngestBatchInput{
		Paths:           paths,
		GenerateSummary: input.GenerateSummary,
	})
	return successResult(report)
}

// HandleExport handles the record_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := ops.Export(ctx, h.deps, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleImport handles the record_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := ops.Import(ctx, h.deps, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleReindex handles the record_reindex tool call.
func (h *Handlers) HandleReindex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := ops.Reindex(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if dErr, ok := errors.As(err); ok {
		// Keep wrapper context such as "line 3: " ahead of the message
		message := dErr.Message
		if prefix := strings.TrimSuffix(err.Error(), dErr.Error()); prefix != err.Error() {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    dErr.Code,
			"message": message,
			"status":  dErr.Status,
		}
		// Internal details can carry file paths and SQL text
		if dErr.Code != errors.ErrInternal && dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
