package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Summarization providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Extraction modes.
const (
	ExtractOCR  = "ocr"
	ExtractText = "text"
)

// Config holds application configuration.
type Config struct {
	// LLMProvider selects the summarization backend: "openai" (any OpenAI-compatible endpoint) or "gemini".
	LLMProvider string `json:"llm_provider,omitempty"`

	// LLMBaseURL is the base URL of the OpenAI-compatible API.
	LLMBaseURL string `json:"llm_base_url,omitempty"`

	// LLMAPIKey is the credential for the summarization endpoint.
	// Empty disables summarization; ingestion still works.
	LLMAPIKey string `json:"llm_api_key,omitempty"`

	// LLMModel is the model name sent with each request.
	LLMModel string `json:"llm_model,omitempty"`

	// SummaryChunkTokens is the estimated token budget per chunk sent to the LLM.
	SummaryChunkTokens int `json:"summary_chunk_tokens,omitempty"`

	// SummaryMaxTokens caps the length of each generated summary.
	SummaryMaxTokens int `json:"summary_max_tokens,omitempty"`

	// SummaryMaxRetries is the number of retries after a transient LLM failure.
	// Nil means the default; 0 turns retries off.
	SummaryMaxRetries *int `json:"summary_max_retries,omitempty"`

	// SummaryTimeoutSeconds bounds a single LLM call.
	SummaryTimeoutSeconds int `json:"summary_timeout_seconds,omitempty"`

	// OCRDPI is the rasterization resolution for OCR.
	OCRDPI int `json:"ocr_dpi,omitempty"`

	// OCRLanguage is the tesseract language code.
	OCRLanguage string `json:"ocr_language,omitempty"`

	// OCRPageMarkers prefixes each page's text with a "--- Page N ---" line.
	OCRPageMarkers bool `json:"ocr_page_markers,omitempty"`

	// ExtractMode is "ocr" (rasterize + tesseract) or "text" (embedded text layer).
	ExtractMode string `json:"extract_mode,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// Bind and Port are the HTTP listen address.
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format,omitempty"`

	// AllowedOrigins is the CORS allowlist for the JSON API. Empty allows none.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// DisableSearch turns off the full-text index.
	DisableSearch bool `json:"disable_search,omitempty"`

	// AllowedPaths are extra directories that record export/import may use,
	// besides <base>/exports. Only absolute paths are honored.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on export/import paths.
	// Symlinks are still refused.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

const defaultMaxRetries = 3

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLMProvider:           ProviderOpenAI,
		LLMBaseURL:            "https://api.openai.com/v1",
		LLMModel:              "gpt-3.5-turbo",
		SummaryChunkTokens:    8000,
		SummaryMaxTokens:      500,
		SummaryMaxRetries:     intPtr(defaultMaxRetries),
		SummaryTimeoutSeconds: 30,
		OCRDPI:                200,
		OCRLanguage:           "eng",
		ExtractMode:           ExtractOCR,
		Bind:                  "127.0.0.1",
		Port:                  8000,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.ocrdesk.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithEnv loads baseDir/config.json, then applies the nearest .env file
// (found by walking upward from startDir), then process environment variables.
// Process environment wins over .env, which wins over config.json.
func LoadWithEnv(baseDir, startDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	if path := FindDotEnv(startDir); path != "" {
		env, err = godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}

	overlay, err := fromEnv(env)
	if err != nil {
		return nil, err
	}
	return Merge(cfg, overlay), nil
}

// FindDotEnv walks upward from startDir to find the nearest .env file.
// Returns the path if found, or empty string if not found.
func FindDotEnv(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		path := filepath.Join(dir, ".env")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

var envKeys = []string{
	"OPENAI_API_KEY",
	"OPENAI_API_BASE_URL",
	"GEMINI_API_KEY",
	"SUMMARIZATION_MODEL",
	"SUMMARIZATION_PROVIDER",
	"OCRDESK_EXTRACT_MODE",
	"OCRDESK_BIND",
	"OCRDESK_PORT",
	"OCRDESK_LOG_LEVEL",
	"OCRDESK_LOG_FORMAT",
}

// fromEnv builds an overlay config from environment-style key/value pairs.
func fromEnv(env map[string]string) (*Config, error) {
	cfg := &Config{
		LLMProvider: strings.ToLower(strings.TrimSpace(env["SUMMARIZATION_PROVIDER"])),
		LLMBaseURL:  strings.TrimSpace(env["OPENAI_API_BASE_URL"]),
		LLMAPIKey:   strings.TrimSpace(env["OPENAI_API_KEY"]),
		LLMModel:    strings.TrimSpace(env["SUMMARIZATION_MODEL"]),
		ExtractMode: strings.ToLower(strings.TrimSpace(env["OCRDESK_EXTRACT_MODE"])),
		Bind:        strings.TrimSpace(env["OCRDESK_BIND"]),
		LogLevel:    strings.TrimSpace(env["OCRDESK_LOG_LEVEL"]),
		LogFormat:   strings.TrimSpace(env["OCRDESK_LOG_FORMAT"]),
	}
	if cfg.LLMProvider == ProviderGemini {
		if key := strings.TrimSpace(env["GEMINI_API_KEY"]); key != "" {
			cfg.LLMAPIKey = key
		}
	}
	if p := strings.TrimSpace(env["OCRDESK_PORT"]); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid OCRDESK_PORT %q", p)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// Save writes cfg to baseDir/config.json with owner-only permissions.
func Save(baseDir string, cfg *Config) error {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(baseDir, "config.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks enumerated fields and the LLM base URL.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown llm_provider %q", c.LLMProvider)
	}
	switch c.ExtractMode {
	case ExtractOCR, ExtractText:
	default:
		return fmt.Errorf("unknown extract_mode %q", c.ExtractMode)
	}
	if c.LLMProvider == ProviderOpenAI {
		if err := ValidateBaseURL(c.LLMBaseURL); err != nil {
			return err
		}
	}
	if c.OCRDPI < 50 || c.OCRDPI > 1200 {
		return fmt.Errorf("ocr_dpi out of range: %d", c.OCRDPI)
	}
	if c.SummaryChunkTokens <= c.SummaryMaxTokens {
		return fmt.Errorf("summary_chunk_tokens (%d) must be greater than summary_max_tokens (%d)",
			c.SummaryChunkTokens, c.SummaryMaxTokens)
	}
	if c.SummaryMaxRetries != nil && *c.SummaryMaxRetries < 0 {
		return fmt.Errorf("summary_max_retries must not be negative: %d", *c.SummaryMaxRetries)
	}
	return nil
}

// Retries returns the configured retry count, or the default when unset.
func (c *Config) Retries() int {
	if c.SummaryMaxRetries == nil {
		return defaultMaxRetries
	}
	return *c.SummaryMaxRetries
}

// ValidateBaseURL requires an absolute http(s) URL with a host.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must start with http:// or https://: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL has no host: %q", raw)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		LLMProvider:           pickString(overlay.LLMProvider, base.LLMProvider),
		LLMBaseURL:            pickString(overlay.LLMBaseURL, base.LLMBaseURL),
		LLMAPIKey:             pickString(overlay.LLMAPIKey, base.LLMAPIKey),
		LLMModel:              pickString(overlay.LLMModel, base.LLMModel),
		SummaryChunkTokens:    pickInt(overlay.SummaryChunkTokens, base.SummaryChunkTokens),
		SummaryMaxTokens:      pickInt(overlay.SummaryMaxTokens, base.SummaryMaxTokens),
		SummaryMaxRetries:     pickIntPtr(overlay.SummaryMaxRetries, base.SummaryMaxRetries),
		SummaryTimeoutSeconds: pickInt(overlay.SummaryTimeoutSeconds, base.SummaryTimeoutSeconds),
		OCRDPI:                pickInt(overlay.OCRDPI, base.OCRDPI),
		OCRLanguage:           pickString(overlay.OCRLanguage, base.OCRLanguage),
		ExtractMode:           pickString(overlay.ExtractMode, base.ExtractMode),
		DBMaxOpenConns:        pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:        pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		Bind:                  pickString(overlay.Bind, base.Bind),
		Port:                  pickInt(overlay.Port, base.Port),
		LogLevel:              pickString(overlay.LogLevel, base.LogLevel),
		LogFormat:             pickString(overlay.LogFormat, base.LogFormat),
	}

	// Booleans: overlay wins if true, else base
	result.DisableSearch = base.DisableSearch || overlay.DisableSearch
	result.OCRPageMarkers = base.OCRPageMarkers || overlay.OCRPageMarkers
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedOrigins = mergeStringSlice(base.AllowedOrigins, overlay.AllowedOrigins)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// pickIntPtr lets an explicit zero in the overlay win.
func pickIntPtr(overlay, base *int) *int {
	if overlay != nil {
		v := *overlay
		return &v
	}
	if base != nil {
		v := *base
		return &v
	}
	return nil
}

func intPtr(v int) *int { return &v }

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
