package ingest

import (
	"context"

	"github.com/WessleyAI/vidrag/engine/graph"
	"github.com/WessleyAI/vidrag/engine/metadata"
	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/engine/segment"
	"github.com/WessleyAI/vidrag/engine/transcript"
)

// Job is the queue message asking for one video to be ingested.
type Job struct {
	Filename string `json:"filename"`
}

// Item carries one video through the pipeline. Each stage fills the fields
// it owns.
type Item struct {
	Filename   string
	Meta       metadata.Video
	VideoPath  string
	Lines      []transcript.Line
	Hints      []segment.Hint
	Chunks     []segment.Chunk
	Embeddings [][]float32
	Records    []record.Record
}

// Fetcher downloads a video by URL into dir and returns the local path.
type Fetcher interface {
	Download(ctx context.Context, src, dir string) (string, error)
}

// AudioExtractor produces the audio file sent for transcription.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

// Transcriber turns an audio file into timed lines.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Line, error)
}

// BoundarySource proposes section starts for a transcript. It never fails;
// an empty result means no hints.
type BoundarySource interface {
	Detect(ctx context.Context, lines []transcript.Line) []segment.Hint
}

// Embedder embeds texts, one vector per text in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Catalog records a video and its sections. Optional.
type Catalog interface {
	SaveVideo(ctx context.Context, v graph.Video, sections []graph.Section) error
}

// RecordSink receives the records of each finished item.
type RecordSink interface {
	WriteAll(recs []record.Record) error
}
