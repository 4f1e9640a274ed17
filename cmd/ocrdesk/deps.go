package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/ocrdesk/internal/config"
	"github.com/hpungsan/ocrdesk/internal/db"
	"github.com/hpungsan/ocrdesk/internal/extract"
	"github.com/hpungsan/ocrdesk/internal/mcp"
	"github.com/hpungsan/ocrdesk/internal/ops"
	"github.com/hpungsan/ocrdesk/internal/search"
	"github.com/hpungsan/ocrdesk/internal/summarize"
)

// indexDirName is the bleve index directory inside the base directory.
const indexDirName = "index.bleve"

// openDeps loads configuration and opens the store, the search index and
// the summarizer. The returned func releases them.
//
// When requireIndex is false a locked or broken index is logged and search
// is turned off for this process instead of failing the command.
func openDeps(ctx context.Context, baseDir string, requireIndex bool) (*ops.Deps, func(), error) {
	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithEnv(baseDir, cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := config.NewLogger(cfg, os.Stderr)

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	summarizer, err := summarize.New(ctx, cfg, logger)
	if err != nil {
		logger.Warn("summarization disabled", "error", err)
		summarizer = summarize.Disabled{}
	}

	deps := &ops.Deps{
		DB:         database,
		Config:     cfg,
		Summarizer: summarizer,
		Extractor:  extract.New(cfg),
		Logger:     logger,
		BaseDir:    baseDir,
	}

	if !cfg.DisableSearch {
		idx, err := search.Open(filepath.Join(baseDir, indexDirName))
		switch {
		case err == nil:
			deps.Index = idx
		case requireIndex:
			database.Close()
			return nil, nil, fmt.Errorf("failed to open search index: %w", err)
		default:
			logger.Warn("search index unavailable, continuing without it", "error", err)
		}
	}

	if err := ops.EnsureIndex(ctx, deps); err != nil {
		logger.Warn("search index rebuild failed", "error", err)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	logger.Debug("ocrdesk ready",
		"base_dir", baseDir,
		"summarization", summarizer.Available(),
		"search", deps.Index != nil,
		"extract_mode", cfg.ExtractMode,
	)

	closeFn := func() {
		if deps.Index != nil {
			_ = deps.Index.Close()
		}
		_ = database.Close()
	}
	return deps, closeFn, nil
}
