package config

const (
	defaultConfigPath      = "~/.config/vidrag/config.toml"
	defaultWorkDir         = "/tmp/videos"
	defaultOutput          = "/tmp/video_rag_embeddings.jsonl"
	defaultLedgerPath      = "~/.local/share/vidrag/ledger.db"
	defaultGCSPrefix       = "gs://pilot-videos/uploads/videos/"
	defaultGCSEndpoint     = "https://storage.googleapis.com"
	defaultWhisperBaseURL  = "https://api.openai.com/v1"
	defaultWhisperModel    = "whisper-1"
	defaultFFmpeg          = "ffmpeg"
	defaultBoundaryBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultBoundaryModel   = "google/gemini-2.5-flash"
	defaultBoundaryPrompt  = "technician"
	defaultBoundaryTimeout = 120
	defaultMinDuration     = 20
	defaultTitle           = "Process"
	defaultOllamaURL       = "http://localhost:11434"
	defaultEmbedModel      = "nomic-embed-text"
	defaultEmbedDims       = 768
	defaultEmbedBatch      = 64
	defaultQdrantAddr      = "localhost:6334"
	defaultCollection      = "vidrag"
	defaultUpsertBatch     = 1000
	defaultNeo4jURL        = "neo4j://localhost:7687"
	defaultNeo4jUser       = "neo4j"
	defaultNATSURL         = "nats://localhost:4222"
	defaultSubject         = "vidrag.ingest"
	defaultDLQSubject      = "vidrag.ingest.dlq"
	defaultQueueGroup      = "vidrag-workers"
	defaultMetricsAddr     = ":9091"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir,
			Output:     defaultOutput,
			LedgerPath: defaultLedgerPath,
		},
		Catalog: Catalog{GCSPrefix: defaultGCSPrefix},
		Storage: Storage{GCSEndpoint: defaultGCSEndpoint},
		Transcription: Transcription{
			BaseURL:      defaultWhisperBaseURL,
			Model:        defaultWhisperModel,
			FFmpegBinary: defaultFFmpeg,
		},
		Boundary: Boundary{
			BaseURL:        defaultBoundaryBaseURL,
			Model:          defaultBoundaryModel,
			Prompt:         defaultBoundaryPrompt,
			TimeoutSeconds: defaultBoundaryTimeout,
		},
		Segment: Segment{MinDurationSeconds: defaultMinDuration, DefaultTitle: defaultTitle},
		Embedding: Embedding{
			OllamaURL: defaultOllamaURL,
			Model:     defaultEmbedModel,
			Dims:      defaultEmbedDims,
			BatchSize: defaultEmbedBatch,
		},
		Index: Index{
			QdrantAddr:  defaultQdrantAddr,
			Collection:  defaultCollection,
			UpsertBatch: defaultUpsertBatch,
		},
		Graph: Graph{URL: defaultNeo4jURL, User: defaultNeo4jUser},
		Queue: Queue{
			URL:        defaultNATSURL,
			Subject:    defaultSubject,
			DLQSubject: defaultDLQSubject,
			Group:      defaultQueueGroup,
		},
		Metrics: Metrics{Addr: defaultMetricsAddr},
		Logging: Logging{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}
