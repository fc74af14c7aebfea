package config

import (
	"fmt"
	"os"
	"strings"
)

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// applyEnv lets the environment override endpoints and fill secrets.
func (c *Config) applyEnv() {
	c.Paths.Output = envOr("VIDRAG_OUTPUT", c.Paths.Output)
	c.Catalog.SQLitePath = envOr("VIDRAG_CATALOG", c.Catalog.SQLitePath)
	c.Storage.GCSToken = envOr("GCS_TOKEN", envOr("GOOGLE_OAUTH_ACCESS_TOKEN", c.Storage.GCSToken))
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = envOr("OPENAI_API_KEY", "")
	}
	if c.Boundary.APIKey == "" {
		c.Boundary.APIKey = envOr("VIDRAG_LLM_API_KEY", envOr("OPENROUTER_API_KEY", ""))
	}
	c.Embedding.OllamaURL = envOr("OLLAMA_URL", c.Embedding.OllamaURL)
	c.Index.QdrantAddr = envOr("QDRANT_ADDR", c.Index.QdrantAddr)
	c.Graph.URL = envOr("NEO4J_URL", c.Graph.URL)
	c.Graph.User = envOr("NEO4J_USER", c.Graph.User)
	c.Graph.Password = envOr("NEO4J_PASSWORD", c.Graph.Password)
	c.Queue.URL = envOr("NATS_URL", c.Queue.URL)
	c.Logging.Level = envOr("VIDRAG_LOG_LEVEL", c.Logging.Level)
}

func (c *Config) normalize() error {
	var err error
	for _, p := range []struct {
		name string
		val  *string
	}{
		{"paths.work_dir", &c.Paths.WorkDir},
		{"paths.output", &c.Paths.Output},
		{"paths.ledger_path", &c.Paths.LedgerPath},
		{"paths.video_root", &c.Paths.VideoRoot},
		{"catalog.sqlite_path", &c.Catalog.SQLitePath},
	} {
		if *p.val, err = expandPath(strings.TrimSpace(*p.val)); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}

	c.Catalog.GCSPrefix = strings.TrimSpace(c.Catalog.GCSPrefix)
	if c.Catalog.GCSPrefix != "" && !strings.HasSuffix(c.Catalog.GCSPrefix, "/") {
		c.Catalog.GCSPrefix += "/"
	}
	c.Boundary.APIKey = strings.TrimSpace(c.Boundary.APIKey)
	c.Boundary.Model = strings.TrimSpace(c.Boundary.Model)
	if strings.TrimSpace(c.Segment.DefaultTitle) == "" {
		c.Segment.DefaultTitle = defaultTitle
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = defaultEmbedBatch
	}
	if c.Index.UpsertBatch <= 0 {
		c.Index.UpsertBatch = defaultUpsertBatch
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
