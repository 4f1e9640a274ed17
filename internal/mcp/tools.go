package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("record_list",
	mcp.WithDescription("List processed PDF records with filename filter, summary filter, sorting and pagination. Returns previews, not full text."),
	mcp.WithString("filename", mcp.Description("Case-insensitive substring of the filename")),
	mcp.WithString("summary", mcp.Description("with | without | all (default all)")),
	mcp.WithString("sort", mcp.Description("id | filename | word_count | character_length | created_at (default created_at)")),
	mcp.WithString("order", mcp.Description("asc | desc (default desc)")),
	mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 100")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var recentToolDef = mcp.NewTool("record_recent",
	mcp.WithDescription("Newest records first."),
	mcp.WithNumber("limit", mcp.Description("Default 10, max 100")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var noSummaryToolDef = mcp.NewTool("record_no_summary",
	mcp.WithDescription("Records that still have no summary, oldest first."),
	mcp.WithNumber("limit", mcp.Description("Default 100, max 1000")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("record_get",
	mcp.WithDescription("Fetch one record by id, including its extracted text."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id")),
	mcp.WithBoolean("include_text", mcp.Description("Include extracted_text (default true)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statsToolDef = mcp.NewTool("record_stats",
	mcp.WithDescription("Total records, words and characters in the store."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var searchToolDef = mcp.NewTool("record_search",
	mcp.WithDescription("Full-text search over filenames, extracted text and summaries."),
	mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
	mcp.WithNumber("limit", mcp.Description("Default 20, max 100")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var checkDuplicateToolDef = mcp.NewTool("record_check_duplicate",
	mcp.WithDescription("Check whether a document is already stored, by content hash or by hashing a local file."),
	mcp.WithString("hash", mcp.Description("Hex content digest")),
	mcp.WithString("path", mcp.Description("Local file to hash instead of passing a digest")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var summarizeToolDef = mcp.NewTool("record_summarize",
	mcp.WithDescription("Generate (or regenerate) the summary of a stored record with the configured LLM."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id")),
)

var deleteToolDef = mcp.NewTool("record_delete",
	mcp.WithDescription("Permanently delete a record."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id")),
	mcp.WithDestructiveHintAnnotation(true),
)

var ingestToolDef = mcp.NewTool("record_ingest",
	mcp.WithDescription("OCR and store a PDF file, or every PDF directly inside a directory. Files already stored are skipped."),
	mcp.WithString("path", mcp.Required(), mcp.Description("PDF file or directory")),
	mcp.WithBoolean("generate_summary", mcp.Description("Also summarize each stored file")),
)

var exportToolDef = mcp.NewTool("record_export",
	mcp.WithDescription("Write all records to a JSONL backup file."),
	mcp.WithString("path", mcp.Description("Destination .jsonl file (default ~/.ocrdesk/exports/records-<time>.jsonl)")),
)

var importToolDef = mcp.NewTool("record_import",
	mcp.WithDescription("Load records from a JSONL backup file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl file")),
	mcp.WithString("mode", mcp.Description("skip (default): skip duplicates and bad lines | error: all or nothing")),
)

var reindexToolDef = mcp.NewTool("record_reindex",
	mcp.WithDescription("Rebuild the full-text index from the store."),
)
