package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ocrdesk/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true,
	"ingest": true, "list": true, "recent": true, "no-summary": true,
	"get": true, "summarize": true, "delete": true,
	"stats": true, "search": true, "hash": true, "check": true,
	"reindex": true, "export": true, "import": true,
	"help": true,
}

// dataDirFlag is the global flag naming the base directory.
const dataDirFlag = "--data-dir"

// commandArg returns the first argument that is not the global --data-dir flag.
func commandArg(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == dataDirFlag {
			i++
			continue
		}
		if strings.HasPrefix(arg, dataDirFlag+"=") {
			continue
		}
		return arg
	}
	return ""
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	arg := commandArg(os.Args[1:])
	if arg == "" {
		return false // No command → MCP server
	}
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	arg := commandArg(os.Args[1:])
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// resolveBaseDir picks the data directory: --data-dir, then OCRDESK_HOME,
// then ~/.ocrdesk.
func resolveBaseDir(args []string) (string, error) {
	for i, arg := range args {
		if arg == dataDirFlag && i+1 < len(args) {
			return args[i+1], nil
		}
		if v, ok := strings.CutPrefix(arg, dataDirFlag+"="); ok {
			return v, nil
		}
	}
	if v := strings.TrimSpace(os.Getenv("OCRDESK_HOME")); v != "" {
		return v, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ocrdesk"), nil
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    ___   ___ ___  ___  ___ ___ _  __
   / _ \ / __| _ \|   \| __/ __| |/ /
  | (_) | (__|   /| |) | _|\__ \ ' <
   \___/ \___|_|_\|___/|___|___/_|\_\

  Scanned PDF text extraction and summaries

  Usage: ocrdesk <command> [options]
         ocrdesk serve       (web UI at http://127.0.0.1:8000/ui)
         ocrdesk --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the store
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && commandArg(os.Args[1:]) != "" && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", commandArg(os.Args[1:]))
		fmt.Fprintf(os.Stderr, "Run 'ocrdesk --help' for usage.\n")
		os.Exit(1)
	}

	baseDir, err := resolveBaseDir(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// The MCP server and web server need the index; one-shot commands can
	// run without it while a server holds the lock.
	requireIndex := !isCLIMode() || commandArg(os.Args[1:]) == "serve" || commandArg(os.Args[1:]) == "mcp"

	deps, closeDeps, err := openDeps(context.Background(), baseDir, requireIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode() {
		app := newCLIApp(deps)
		err = app.Run(os.Args)
	} else {
		// MCP server mode (default)
		err = mcp.Run(deps, Version)
	}
	closeDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
