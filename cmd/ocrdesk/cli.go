package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/ocrdesk/internal/errors"
	"github.com/hpungsan/ocrdesk/internal/hasher"
	"github.com/hpungsan/ocrdesk/internal/mcp"
	"github.com/hpungsan/ocrdesk/internal/ops"
	"github.com/hpungsan/ocrdesk/internal/web"
)

// newCLIApp creates the CLI application with all commands.
// deps is nil when only help or version output is needed.
func newCLIApp(deps *ops.Deps) *cli.App {
	app := &cli.App{
		Name:    "ocrdesk",
		Usage:   "OCR scanned PDFs, keep the text, and summarize it",
		Version: Version,
		Flags: []cli.Flag{
			// Read by resolveBaseDir before the app runs
			&cli.StringFlag{Name: "data-dir", EnvVars: []string{"OCRDESK_HOME"}, Usage: "Data directory (default: ~/.ocrdesk)"},
		},
		Commands: []*cli.Command{
			serveCmd(deps),
			mcpCmd(deps),
			ingestCmd(deps),
			listCmd(deps),
			recentCmd(deps),
			noSummaryCmd(deps),
			getCmd(deps),
			summarizeCmd(deps),
			deleteCmd(deps),
			statsCmd(deps),
			searchCmd(deps),
			hashCmd(),
			checkCmd(deps),
			reindexCmd(deps),
			exportCmd(deps),
			importCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Listen address (default from config, 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config, 8000)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				deps.Config.Bind = bind
			}
			if c.IsSet("port") {
				port := c.Int("port")
				if port < 1 || port > 65535 {
					return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
				}
				deps.Config.Port = port
			}

			srv, err := web.NewServer(deps, Version)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv, deps.Logger); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the record tools over MCP stdio",
		Action: func(c *cli.Context) error {
			if err := mcp.Run(deps, Version); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// ingestCmd creates the ingest command.
func ingestCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "OCR and store PDF files; directories contribute the PDFs directly inside them",
		ArgsUsage: "<dir|file>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "summarize", Aliases: []string{"s"}, Usage: "Summarize each stored file"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "No progress lines on stderr"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one directory or PDF file is required"))
			}

			paths, err := expandIngestArgs(c.Args().Slice())
			if err != nil {
				return outputError(err)
			}
			if len(paths) == 0 {
				return outputError(errors.NewInvalidRequest("no PDF files found"))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			input := ops.IngestBatchInput{
				Paths:           paths,
				GenerateSummary: c.Bool("summarize"),
			}
			if !c.Bool("quiet") {
				input.Progress = progressPrinter(c.App.ErrWriter)
			}

			report := ops.IngestBatch(ctx, deps, input)
			return outputJSON(report)
		},
	}
}

// expandIngestArgs replaces each directory argument with the PDFs inside it.
// Other arguments pass through; a missing file fails in the batch like any
// other bad file.
func expandIngestArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := ops.ScanDirectory(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// progressPrinter writes one line per finished file.
func progressPrinter(w io.Writer) ops.BatchProgress {
	if w == nil {
		w = os.Stderr
	}
	return func(done, total int, r ops.FileResult) {
		fmt.Fprintf(w, "[%d/%d] %-7s %s: %s\n", done, total, r.Outcome, r.Filename, r.Message)
	}
}

// listCmd creates the list command.
func listCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List records with filters, sorting and pagination",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filename", Aliases: []string{"f"}, Usage: "Case-insensitive filename substring"},
			&cli.StringFlag{Name: "summary", Value: "all", Usage: "Summary filter: with|without|all"},
			&cli.StringFlag{Name: "sort", Value: "created_at", Usage: "Sort by: id|filename|word_count|character_length|created_at"},
			&cli.StringFlag{Name: "order", Value: "desc", Usage: "Sort order: asc|desc"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, deps.DB, ops.ListInput{
				FilenameContains: c.String("filename"),
				Summary:          c.String("summary"),
				SortBy:           c.String("sort"),
				Order:            c.String("order"),
				Limit:            c.Int("limit"),
				Offset:           c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// recentCmd creates the recent command.
func recentCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "Show the newest records",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultRecentLimit, Usage: "Maximum items to return"},
		},
		Action: func(c *cli.Context) error {
			items, err := ops.Recent(c.Context, deps.DB, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(items)
		},
	}
}

// noSummaryCmd creates the no-summary command.
func noSummaryCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "no-summary",
		Usage: "Show records without a summary, oldest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultNoSummaryLimit, Usage: "Maximum items to return"},
		},
		Action: func(c *cli.Context) error {
			items, err := ops.NoSummary(c.Context, deps.DB, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(items)
		},
	}
}

// getCmd creates the get command.
func getCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one record",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-text", Usage: "Exclude extracted_text from output"},
		},
		Action: func(c *cli.Context) error {
			id, err := parseIDArg(c)
			if err != nil {
				return outputError(err)
			}
			input := ops.FetchInput{ID: id}
			if c.Bool("no-text") {
				includeText := false
				input.IncludeText = &includeText
			}

			output, err := ops.Fetch(c.Context, deps.DB, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// summarizeCmd creates the summarize command.
func summarizeCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Generate or regenerate a record's summary",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := parseIDArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.RegenerateSummary(c.Context, deps, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete a record",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := parseIDArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Delete(c.Context, deps, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show record, word and character totals",
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, deps.DB)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search over filenames, text and summaries",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum hits to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Search(c.Context, deps, ops.SearchInput{
				Query: strings.Join(c.Args().Slice(), " "),
				Limit: c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// hashOutput is printed by hash and check.
type hashOutput struct {
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	IsDuplicate *bool  `json:"is_duplicate,omitempty"`
	ID          *int64 `json:"id,omitempty"`
}

// hashCmd creates the hash command. It needs no store.
func hashCmd() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the content digest of a file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path, sum, err := hashArg(c)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(hashOutput{Path: path, ContentHash: sum})
		},
	}
}

// checkCmd creates the check command.
func checkCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Report whether a file is already stored",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path, sum, err := hashArg(c)
			if err != nil {
				return outputError(err)
			}
			dup, err := ops.CheckDuplicate(c.Context, deps, sum)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(hashOutput{
				Path:        path,
				ContentHash: sum,
				IsDuplicate: &dup.IsDuplicate,
				ID:          dup.ID,
			})
		},
	}
}

// reindexCmd creates the reindex command.
func reindexCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the full-text index from the store",
		Action: func(c *cli.Context) error {
			output, err := ops.Reindex(c.Context, deps)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all records to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.ocrdesk/exports/records-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, deps, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import records from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeSkip), Usage: "Duplicate handling: skip|error"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, deps, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if dErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseIDArg reads the positional record id.
func parseIDArg(c *cli.Context) (int64, error) {
	if c.NArg() == 0 {
		return 0, errors.NewInvalidRequest("record id is required")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid record id %q", c.Args().First()))
	}
	return id, nil
}

// hashArg hashes the positional file argument.
func hashArg(c *cli.Context) (string, string, error) {
	if c.NArg() == 0 {
		return "", "", errors.NewInvalidRequest("file path is required")
	}
	path := c.Args().First()
	sum, err := hasher.HashFile(path)
	if err != nil {
		return "", "", err
	}
	return path, sum, nil
}
