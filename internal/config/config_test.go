package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every variable LoadWithEnv reads so host settings don't leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.LLMModel != def.LLMModel {
		t.Errorf("LLMModel = %q, want %q", cfg.LLMModel, def.LLMModel)
	}
	if cfg.SummaryChunkTokens != 8000 || cfg.SummaryMaxTokens != 500 {
		t.Errorf("summary limits = %d/%d, want 8000/500", cfg.SummaryChunkTokens, cfg.SummaryMaxTokens)
	}
	if cfg.OCRDPI != 200 || cfg.OCRLanguage != "eng" {
		t.Errorf("OCR = %d/%s, want 200/eng", cfg.OCRDPI, cfg.OCRLanguage)
	}
	if cfg.LLMAPIKey != "" {
		t.Errorf("LLMAPIKey = %q, want empty", cfg.LLMAPIKey)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"llm_model": "gpt-4o-mini", "ocr_dpi": 300}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("LLMModel = %q, want gpt-4o-mini", cfg.LLMModel)
	}
	if cfg.OCRDPI != 300 {
		t.Errorf("OCRDPI = %d, want 300", cfg.OCRDPI)
	}
	// Untouched fields keep defaults
	if cfg.LLMBaseURL != DefaultConfig().LLMBaseURL {
		t.Errorf("LLMBaseURL = %q, want default", cfg.LLMBaseURL)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoadWithEnv_DotEnv(t *testing.T) {
	clearEnv(t)
	baseDir := t.TempDir()
	workDir := t.TempDir()

	os.WriteFile(filepath.Join(baseDir, "config.json"), []byte(`{"llm_model": "from-file"}`), 0600)
	os.WriteFile(filepath.Join(workDir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\nSUMMARIZATION_MODEL=from-dotenv\n"), 0600)

	cfg, err := LoadWithEnv(baseDir, workDir)
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.LLMAPIKey != "sk-dotenv" {
		t.Errorf("LLMAPIKey = %q, want sk-dotenv", cfg.LLMAPIKey)
	}
	if cfg.LLMModel != "from-dotenv" {
		t.Errorf("LLMModel = %q, want from-dotenv", cfg.LLMModel)
	}
}

func TestLoadWithEnv_ProcessEnvWins(t *testing.T) {
	clearEnv(t)
	baseDir := t.TempDir()
	workDir := t.TempDir()

	os.WriteFile(filepath.Join(workDir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0600)
	t.Setenv("OPENAI_API_KEY", "sk-process")
	t.Setenv("OPENAI_API_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("OCRDESK_PORT", "9001")

	cfg, err := LoadWithEnv(baseDir, workDir)
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.LLMAPIKey != "sk-process" {
		t.Errorf("LLMAPIKey = %q, want sk-process", cfg.LLMAPIKey)
	}
	if cfg.LLMBaseURL != "http://localhost:11434/v1" {
		t.Errorf("LLMBaseURL = %q", cfg.LLMBaseURL)
	}
	if cfg.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Port)
	}
}

func TestLoadWithEnv_GeminiKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUMMARIZATION_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := LoadWithEnv(t.TempDir(), "")
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.LLMProvider != ProviderGemini || cfg.LLMAPIKey != "g-key" {
		t.Errorf("provider/key = %q/%q, want gemini/g-key", cfg.LLMProvider, cfg.LLMAPIKey)
	}
}

func TestLoadWithEnv_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("OCRDESK_PORT", "http")

	if _, err := LoadWithEnv(t.TempDir(), ""); err == nil {
		t.Fatal("LoadWithEnv() expected error for invalid port")
	}
}

func TestFindDotEnv_InParentDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	os.MkdirAll(nested, 0700)
	os.WriteFile(filepath.Join(root, ".env"), []byte("X=1\n"), 0600)

	got := FindDotEnv(nested)
	if got != filepath.Join(root, ".env") {
		t.Errorf("FindDotEnv() = %q, want %q", got, filepath.Join(root, ".env"))
	}
}

func TestSave_RoundTrip(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "home")
	cfg := DefaultConfig()
	cfg.LLMBaseURL = "http://127.0.0.1:8080/v1"
	cfg.LLMAPIKey = "sk-saved"

	if err := Save(baseDir, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(baseDir, "config.json"))
	if err != nil {
		t.Fatalf("config.json not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config.json mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(baseDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.LLMBaseURL != cfg.LLMBaseURL || loaded.LLMAPIKey != cfg.LLMAPIKey {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.openai.com/v1", false},
		{"http://localhost:11434/v1", false},
		{"ftp://example.com", true},
		{"api.openai.com/v1", true},
		{"https://", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateBaseURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBaseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}

	cfg := DefaultConfig()
	cfg.ExtractMode = "magic"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for unknown extract_mode")
	}

	cfg = DefaultConfig()
	cfg.LLMProvider = "other"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for unknown provider")
	}
}

func TestValidate_ChunkMustExceedSummaryLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SummaryChunkTokens = 100
	cfg.SummaryMaxTokens = 500
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error when summary_chunk_tokens < summary_max_tokens")
	}

	cfg.SummaryChunkTokens = 500
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error when summary_chunk_tokens == summary_max_tokens")
	}

	cfg.SummaryChunkTokens = 501
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_ZeroRetriesKept(t *testing.T) {
	baseDir := t.TempDir()
	data := []byte(`{"summary_max_retries": 0}`)
	if err := os.WriteFile(filepath.Join(baseDir, "config.json"), data, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(baseDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Retries(); got != 0 {
		t.Errorf("Retries() = %d, want 0", got)
	}

	defaults, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := defaults.Retries(); got != 3 {
		t.Errorf("default Retries() = %d, want 3", got)
	}
}

func TestMerge_RetriesPointer(t *testing.T) {
	base := &Config{SummaryMaxRetries: intPtr(3)}

	if got := Merge(base, &Config{}).Retries(); got != 3 {
		t.Errorf("unset overlay: Retries() = %d, want 3", got)
	}
	if got := Merge(base, &Config{SummaryMaxRetries: intPtr(0)}).Retries(); got != 0 {
		t.Errorf("zero overlay: Retries() = %d, want 0", got)
	}
	if got := (&Config{}).Retries(); got != defaultMaxRetries {
		t.Errorf("nil Retries() = %d, want %d", got, defaultMaxRetries)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{LLMModel: "a", Port: 8000, OCRDPI: 200}
	overlay := &Config{LLMModel: "b"}

	result := Merge(base, overlay)
	if result.LLMModel != "b" {
		t.Errorf("LLMModel = %q, want b", result.LLMModel)
	}
	if result.Port != 8000 || result.OCRDPI != 200 {
		t.Errorf("base scalars lost: %+v", result)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"record_delete", " record_ingest "}}
	overlay := &Config{DisabledTools: []string{"record_ingest", "record_summarize", ""}}

	result := Merge(base, overlay)
	want := []string{"record_delete", "record_ingest", "record_summarize"}
	if strings.Join(result.DisabledTools, ",") != strings.Join(want, ",") {
		t.Errorf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "filename", "a.pdf")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, `"filename":"a.pdf"`) {
		t.Errorf("json output missing attribute: %s", out)
	}
}
