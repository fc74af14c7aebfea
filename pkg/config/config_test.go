package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"VIDRAG_CONFIG", "VIDRAG_OUTPUT", "VIDRAG_CATALOG", "GCS_TOKEN", "GOOGLE_OAUTH_ACCESS_TOKEN",
		"OPENAI_API_KEY", "VIDRAG_LLM_API_KEY", "OPENROUTER_API_KEY", "OLLAMA_URL", "QDRANT_ADDR",
		"NEO4J_URL", "NEO4J_USER", "NEO4J_PASSWORD", "NATS_URL", "VIDRAG_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	t.Chdir(home)
	return home
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	home := isolate(t)

	cfg, path, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected no config file")
	}
	if path != filepath.Join(home, ".config", "vidrag", "config.toml") {
		t.Fatalf("path = %q", path)
	}
	if cfg.Paths.LedgerPath != filepath.Join(home, ".local", "share", "vidrag", "ledger.db") {
		t.Fatalf("ledger path not expanded: %q", cfg.Paths.LedgerPath)
	}
	if cfg.Segment.MinDurationSeconds != 20 || cfg.Segment.DefaultTitle != "Process" {
		t.Fatalf("segment = %+v", cfg.Segment)
	}
	if cfg.Embedding.Dims != 768 || cfg.Index.UpsertBatch != 1000 {
		t.Fatalf("embedding/index = %+v %+v", cfg.Embedding, cfg.Index)
	}
	if cfg.MinDuration().Seconds() != 20 {
		t.Fatalf("MinDuration = %v", cfg.MinDuration())
	}
}

func TestLoadFileAndNormalize(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "vidrag.toml")
	body := `
[paths]
output = "~/out.jsonl"

[catalog]
gcs_prefix = "gs://bucket/videos"

[segment]
min_duration_seconds = 5.0
default_title = "  "

[embedding]
dims = 4
batch_size = 0

[logging]
level = "DEBUG"
format = "fancy"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	home, _ := os.UserHomeDir()
	if cfg.Paths.Output != filepath.Join(home, "out.jsonl") {
		t.Fatalf("output = %q", cfg.Paths.Output)
	}
	if cfg.Catalog.GCSPrefix != "gs://bucket/videos/" {
		t.Fatalf("prefix = %q", cfg.Catalog.GCSPrefix)
	}
	if cfg.Segment.MinDurationSeconds != 5 || cfg.Segment.DefaultTitle != "Process" {
		t.Fatalf("segment = %+v", cfg.Segment)
	}
	if cfg.Embedding.Dims != 4 || cfg.Embedding.BatchSize != 64 {
		t.Fatalf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "auto" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[segment]\nmin_seconds = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-whisper")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("QDRANT_ADDR", "qdrant:6334")
	t.Setenv("VIDRAG_LOG_LEVEL", "warn")

	cfg, _, _, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.APIKey != "sk-whisper" || cfg.Boundary.APIKey != "or-key" {
		t.Fatalf("keys = %q %q", cfg.Transcription.APIKey, cfg.Boundary.APIKey)
	}
	if cfg.Graph.Password != "secret" || cfg.Index.QdrantAddr != "qdrant:6334" || cfg.Logging.Level != "warn" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("VIDRAG_LLM_API_KEY", "primary")
	cfg, _, _, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Boundary.APIKey != "primary" {
		t.Fatalf("VIDRAG_LLM_API_KEY should win, got %q", cfg.Boundary.APIKey)
	}
}

func TestConfigEnvPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "from-env.toml")
	if err := os.WriteFile(path, []byte("[index]\ncollection = \"other\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VIDRAG_CONFIG", path)
	cfg, resolved, exists, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !exists || resolved != path || cfg.Index.Collection != "other" {
		t.Fatalf("resolved=%q exists=%v collection=%q", resolved, exists, cfg.Index.Collection)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative min duration", func(c *Config) { c.Segment.MinDurationSeconds = -1 }, "min_duration"},
		{"zero dims", func(c *Config) { c.Embedding.Dims = 0 }, "dims"},
		{"bad prefix", func(c *Config) { c.Catalog.GCSPrefix = "s3://x/" }, "gs://"},
		{"negative rps", func(c *Config) { c.Boundary.RequestsPerSecond = -1 }, "requests_per_second"},
		{"same dlq", func(c *Config) { c.Queue.DLQSubject = c.Queue.Subject }, "dlq_subject"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestCreateSampleMatchesDefaults(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var fromSample Config
	if err := toml.Unmarshal(data, &fromSample); err != nil {
		t.Fatalf("sample does not parse: %v", err)
	}
	if fromSample != Default() {
		t.Fatalf("sample differs from defaults:\n%+v\n%+v", fromSample, Default())
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := Default()
	cfg.Paths.WorkDir = filepath.Join(t.TempDir(), "a", "b")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(cfg.Paths.WorkDir); err != nil || !info.IsDir() {
		t.Fatalf("work dir not created: %v", err)
	}
}
