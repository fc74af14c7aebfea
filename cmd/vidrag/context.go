package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/vidrag/engine/boundary"
	"github.com/WessleyAI/vidrag/engine/graph"
	"github.com/WessleyAI/vidrag/engine/ingest"
	"github.com/WessleyAI/vidrag/engine/metadata"
	"github.com/WessleyAI/vidrag/engine/segment"
	"github.com/WessleyAI/vidrag/engine/semantic"
	"github.com/WessleyAI/vidrag/pkg/config"
	"github.com/WessleyAI/vidrag/pkg/llm"
	"github.com/WessleyAI/vidrag/pkg/logging"
	"github.com/WessleyAI/vidrag/pkg/media"
	"github.com/WessleyAI/vidrag/pkg/objstore"
	"github.com/WessleyAI/vidrag/pkg/ollama"
	"github.com/WessleyAI/vidrag/pkg/whisper"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, levelFlag: levelFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.levelFlag != nil && strings.TrimSpace(*c.levelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.levelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) log(cmd *cobra.Command) *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		opts := logging.Options{Level: "info", Format: "auto", Output: cmd.ErrOrStderr()}
		if cfg != nil {
			opts.Level, opts.Format = cfg.Logging.Level, cfg.Logging.Format
		}
		l, err := logging.New(opts)
		if err != nil {
			l = slog.Default()
		}
		c.logger = l
		slog.SetDefault(l)
	})
	return c.logger
}

// metadataSource opens the configured lookup: the folder layout when a video
// root is set, otherwise the SQLite catalog.
func (c *commandContext) metadataSource(cfg *config.Config, videoRoot string) (metadata.Lookup, io.Closer, error) {
	if videoRoot == "" {
		videoRoot = cfg.Paths.VideoRoot
	}
	if videoRoot != "" {
		idx, err := metadata.NewPathIndex(videoRoot, cfg.Catalog.GCSPrefix)
		if err != nil {
			return nil, nil, err
		}
		return idx, closerFunc(func() error { return nil }), nil
	}
	if cfg.Catalog.SQLitePath == "" {
		return nil, nil, errors.New("no metadata source: set catalog.sqlite_path or paths.video_root")
	}
	store, err := metadata.Open(cfg.Catalog.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func (c *commandContext) boundaries(cfg *config.Config, log *slog.Logger) ingest.BoundarySource {
	if cfg.Boundary.APIKey == "" {
		log.Warn("boundary detection disabled: no API key; every video becomes one section")
		return nil
	}
	client := llm.NewClient(llm.Config{
		APIKey:            cfg.Boundary.APIKey,
		BaseURL:           cfg.Boundary.BaseURL,
		Model:             cfg.Boundary.Model,
		TimeoutSeconds:    cfg.Boundary.TimeoutSeconds,
		RequestsPerSecond: cfg.Boundary.RequestsPerSecond,
	})
	return boundary.NewDetector(client,
		boundary.WithCache(boundary.NewMemoryCache()),
		boundary.WithPrompt(boundary.PromptByName(cfg.Boundary.Prompt)),
		boundary.WithLogger(log),
	)
}

func (c *commandContext) embedder(cfg *config.Config) *ollama.EmbedClient {
	return ollama.NewEmbedClient(cfg.Embedding.OllamaURL, cfg.Embedding.Model,
		ollama.WithBatchSize(cfg.Embedding.BatchSize),
		ollama.WithDims(cfg.Embedding.Dims),
		ollama.WithRateLimit(cfg.Embedding.RequestsPerSecond),
	)
}

func (c *commandContext) extractor(cfg *config.Config) media.Extractor {
	return media.Extractor{Binary: cfg.Transcription.FFmpegBinary, TmpDir: cfg.Paths.WorkDir}
}

func (c *commandContext) transcriber(cfg *config.Config) ingest.Transcriber {
	var opts []whisper.Option
	if cfg.Transcription.Language != "" {
		opts = append(opts, whisper.WithLanguage(cfg.Transcription.Language))
	}
	return ingest.WhisperTranscriber{Client: whisper.New(
		cfg.Transcription.BaseURL, cfg.Transcription.APIKey, cfg.Transcription.Model, opts...)}
}

func (c *commandContext) objectStore(cfg *config.Config) *objstore.Store {
	return objstore.New(objstore.WithEndpoint(cfg.Storage.GCSEndpoint), objstore.WithToken(cfg.Storage.GCSToken))
}

func (c *commandContext) segmentOptions(cfg *config.Config) segment.Options {
	return segment.Options{MinDuration: cfg.MinDuration(), DefaultTitle: cfg.Segment.DefaultTitle}
}

// graphStore connects the optional section graph. It returns nil when the
// graph is disabled or unreachable; the close func is never nil.
func (c *commandContext) graphStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*graph.Store, func()) {
	if !cfg.Graph.Enabled {
		return nil, func() {}
	}
	driver, err := graph.Connect(ctx, cfg.Graph.URL, cfg.Graph.User, cfg.Graph.Password)
	if err != nil {
		log.Warn("section graph unavailable", "error", err)
		return nil, func() {}
	}
	store := graph.New(driver)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Warn("section graph schema", "error", err)
	}
	return store, func() { _ = driver.Close(context.Background()) }
}

func (c *commandContext) catalog(ctx context.Context, cfg *config.Config, log *slog.Logger) (ingest.Catalog, func()) {
	store, closeFn := c.graphStore(ctx, cfg, log)
	if store == nil {
		return nil, closeFn
	}
	return store, closeFn
}

func (c *commandContext) vectorStore(ctx context.Context, cfg *config.Config, ensure bool, log *slog.Logger) (*semantic.VectorStore, error) {
	vs, err := semantic.New(cfg.Index.QdrantAddr, cfg.Index.Collection)
	if err != nil {
		return nil, err
	}
	vs.WithLogger(log)
	if ensure {
		if err := vs.EnsureCollection(ctx, cfg.Embedding.Dims); err != nil {
			vs.Close()
			return nil, err
		}
	}
	return vs, nil
}

// pipelineDeps assembles the pipeline dependencies from configuration.
func (c *commandContext) pipelineDeps(ctx context.Context, cfg *config.Config, log *slog.Logger, videoRoot string) (ingest.Deps, func(), error) {
	lookup, closer, err := c.metadataSource(cfg, videoRoot)
	if err != nil {
		return ingest.Deps{}, nil, err
	}
	catalog, closeCatalog := c.catalog(ctx, cfg, log)
	store := c.objectStore(cfg)
	deps := ingest.Deps{
		Lookup:      lookup,
		Fetcher:     store,
		Audio:       c.extractor(cfg),
		Transcriber: c.transcriber(cfg),
		Boundaries:  c.boundaries(cfg, log),
		Embedder:    c.embedder(cfg),
		Catalog:     catalog,
		Logger:      log,
		WorkDir:     cfg.Paths.WorkDir,
		Segment:     c.segmentOptions(cfg),
		Dims:        cfg.Embedding.Dims,
	}
	cleanup := func() {
		closeCatalog()
		if err := store.Close(); err != nil {
			log.Warn("close object store", "error", err)
		}
		if err := closer.Close(); err != nil {
			log.Warn("close metadata source", "error", err)
		}
	}
	return deps, cleanup, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func requireConfig(c *commandContext) (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
