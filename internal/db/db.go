package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/ocrdesk/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file created under the base directory.
const FileName = "ocrdesk.db"

// Init initializes the SQLite database at baseDir/ocrdesk.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.ocrdesk.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate creates the schema and upgrades tables written by older releases.
// Column evolution runs on every start because legacy databases report
// user_version 0 but may already hold a partial pdf_extracts table.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: base table (no-op if a legacy table already exists)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS pdf_extracts (
		  id               INTEGER PRIMARY KEY AUTOINCREMENT,
		  filename         TEXT NOT NULL,
		  extracted_text   TEXT NOT NULL DEFAULT '',
		  word_count       INTEGER NOT NULL DEFAULT 0,
		  character_length INTEGER NOT NULL DEFAULT 0,
		  content_hash     TEXT,
		  summary          TEXT,
		  created_at       INTEGER NOT NULL DEFAULT 0
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
	}

	if err := evolveColumns(db); err != nil {
		return err
	}

	indexes := `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_pdf_extracts_content_hash
	ON pdf_extracts(content_hash)
	WHERE content_hash IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_pdf_extracts_created_at
	ON pdf_extracts(created_at DESC, id DESC);
	`
	if _, err := db.Exec(indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	if version < CurrentSchemaVersion {
		if err := SetUserVersion(db, CurrentSchemaVersion); err != nil {
			return err
		}
	}

	return nil
}

// addedColumns are columns that older tables may lack, with their DDL.
var addedColumns = []struct {
	name string
	ddl  string
}{
	{"content_hash", "ALTER TABLE pdf_extracts ADD COLUMN content_hash TEXT"},
	{"summary", "ALTER TABLE pdf_extracts ADD COLUMN summary TEXT"},
	{"created_at", "ALTER TABLE pdf_extracts ADD COLUMN created_at INTEGER NOT NULL DEFAULT 0"},
}

// evolveColumns adds missing columns. Existing rows get NULL or the column default.
func evolveColumns(db *sql.DB) error {
	cols, err := TableColumns(context.Background(), db, "pdf_extracts")
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}

	for _, col := range addedColumns {
		if have[col.name] {
			continue
		}
		if _, err := db.Exec(col.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}

	// Backfill created_at for rows inserted before it existed.
	now := time.Now().Unix()
	backfill := `UPDATE pdf_extracts SET created_at = ? WHERE created_at = 0`
	args := []any{now}
	if have["created_timestamp"] {
		backfill = `
		UPDATE pdf_extracts
		SET created_at = COALESCE(CAST(strftime('%s', created_timestamp) AS INTEGER), ?)
		WHERE created_at = 0`
	}
	if _, err := db.Exec(backfill, args...); err != nil {
		return fmt.Errorf("backfill created_at: %w", err)
	}

	return nil
}

// TableColumns returns the column names of table in declaration order.
func TableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("table_info %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
