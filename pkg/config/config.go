// Package config loads vidrag settings from a TOML file, fills defaults and
// applies environment overrides for secrets and endpoints.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds local working locations.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	Output     string `toml:"output"`
	LedgerPath string `toml:"ledger_path"`
	VideoRoot  string `toml:"video_root"`
}

// Catalog holds the metadata sources.
type Catalog struct {
	SQLitePath string `toml:"sqlite_path"`
	GCSPrefix  string `toml:"gcs_prefix"`
}

// Storage configures object downloads and uploads.
type Storage struct {
	GCSEndpoint string `toml:"gcs_endpoint"`
	GCSToken    string `toml:"gcs_token"`
}

// Transcription configures speech to text.
type Transcription struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	Language     string `toml:"language"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Boundary configures the boundary detection model.
type Boundary struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Prompt            string  `toml:"prompt"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Segment configures chunking.
type Segment struct {
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
	DefaultTitle       string  `toml:"default_title"`
}

// Embedding configures the embedding service.
type Embedding struct {
	OllamaURL         string  `toml:"ollama_url"`
	Model             string  `toml:"model"`
	Dims              int     `toml:"dims"`
	BatchSize         int     `toml:"batch_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Index configures the vector index.
type Index struct {
	QdrantAddr  string `toml:"qdrant_addr"`
	Collection  string `toml:"collection"`
	UpsertBatch int    `toml:"upsert_batch"`
}

// Graph configures the optional section catalog graph.
type Graph struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// Queue configures the NATS worker.
type Queue struct {
	URL        string `toml:"url"`
	Subject    string `toml:"subject"`
	DLQSubject string `toml:"dlq_subject"`
	Group      string `toml:"group"`
}

// Metrics configures the worker's metrics endpoint.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete runtime configuration.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	Boundary      Boundary      `toml:"boundary"`
	Segment       Segment       `toml:"segment"`
	Embedding     Embedding     `toml:"embedding"`
	Index         Index         `toml:"index"`
	Graph         Graph         `toml:"graph"`
	Queue         Queue         `toml:"queue"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// MinDuration returns the merge threshold.
func (c *Config) MinDuration() time.Duration {
	return time.Duration(c.Segment.MinDurationSeconds * float64(time.Second))
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, normalizes and validates a configuration file. A
// missing file is not an error; defaults and environment apply. It returns
// the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := toml.NewDecoder(file)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if v := os.Getenv("VIDRAG_CONFIG"); v != "" {
			path = v
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("vidrag.toml")
	if err != nil {
		return "", false, err
	}
	for _, p := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true, nil
		}
	}
	return defaultPath, false, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// ExpandPath applies the same ~ and absolute path rules as Load.
func ExpandPath(p string) (string, error) { return expandPath(p) }

// EnsureDirectories creates the work directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.WorkDir, err)
	}
	return nil
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
