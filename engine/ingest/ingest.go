// Package ingest runs videos through the ingestion pipeline: metadata
// lookup, download, transcription, boundary detection, segmentation,
// embedding and record building.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/WessleyAI/vidrag/engine/graph"
	"github.com/WessleyAI/vidrag/engine/metadata"
	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/engine/segment"
	"github.com/WessleyAI/vidrag/pkg/fn"
)

// ErrNoChunks is returned when segmentation yields nothing to embed.
var ErrNoChunks = errors.New("ingest: no chunks")

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Lookup      metadata.Lookup
	Fetcher     Fetcher
	Audio       AudioExtractor
	Transcriber Transcriber
	Boundaries  BoundarySource // nil means no hints
	Embedder    Embedder
	Catalog     Catalog // optional
	Metrics     *Metrics
	Logger      *slog.Logger

	WorkDir string
	Segment segment.Options
	Dims    int // 0 skips the dimension check
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// --- Pipeline Stages ---

// NewResolve looks up and validates the metadata of a filename.
func NewResolve(lookup metadata.Lookup) fn.Stage[string, Item] {
	return func(ctx context.Context, filename string) fn.Result[Item] {
		meta, err := lookup.Lookup(ctx, filename)
		if err != nil {
			return fn.Err[Item](err)
		}
		if meta.Filename == "" {
			meta.Filename = filename
		}
		if err := meta.Validate(); err != nil {
			return fn.Err[Item](err)
		}
		return fn.Ok(Item{Filename: filename, Meta: meta})
	}
}

// ItemDir is the per-item download directory under workDir.
func ItemDir(workDir, filename string) string {
	if workDir == "" {
		workDir = os.TempDir()
	}
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return filepath.Join(workDir, "item-"+stem)
}

// NewFetch downloads the video into its item directory under workDir.
func NewFetch(f Fetcher, workDir string) fn.Stage[Item, Item] {
	return func(ctx context.Context, it Item) fn.Result[Item] {
		path, err := f.Download(ctx, it.Meta.GCSURL, ItemDir(workDir, it.Filename))
		if err != nil {
			return fn.Err[Item](fmt.Errorf("ingest: download: %w", err))
		}
		it.VideoPath = path
		return fn.Ok(it)
	}
}

// NewTranscribe extracts the audio track and transcribes it. The extracted
// audio is removed afterwards. An empty transcript fails the item.
func NewTranscribe(audio AudioExtractor, tr Transcriber) fn.Stage[Item, Item] {
	return func(ctx context.Context, it Item) fn.Result[Item] {
		src := it.VideoPath
		if audio != nil {
			wav, err := audio.ExtractAudio(ctx, it.VideoPath)
			if err != nil {
				return fn.Err[Item](fmt.Errorf("ingest: extract audio: %w", err))
			}
			defer os.Remove(wav)
			src = wav
		}
		lines, err := tr.Transcribe(ctx, src)
		if err != nil {
			return fn.Err[Item](fmt.Errorf("ingest: transcribe: %w", err))
		}
		if len(lines) == 0 {
			return fn.Err[Item](fmt.Errorf("ingest: transcribe %s: %w", it.Filename, segment.ErrEmptyTranscript))
		}
		it.Lines = lines
		return fn.Ok(it)
	}
}

// NewDetect asks the boundary source for hints. It never fails.
func NewDetect(b BoundarySource) fn.Stage[Item, Item] {
	return func(ctx context.Context, it Item) fn.Result[Item] {
		if b != nil {
			it.Hints = b.Detect(ctx, it.Lines)
		}
		return fn.Ok(it)
	}
}

// NewSegment partitions the transcript on the hints and merges short chunks.
func NewSegment(opts segment.Options) fn.Stage[Item, Item] {
	return func(_ context.Context, it Item) fn.Result[Item] {
		chunks, err := segment.Segment(it.Lines, it.Hints, opts)
		if err != nil {
			return fn.Err[Item](fmt.Errorf("ingest: segment %s: %w", it.Filename, err))
		}
		if len(chunks) == 0 {
			return fn.Err[Item](fmt.Errorf("%w: %s", ErrNoChunks, it.Filename))
		}
		it.Chunks = chunks
		return fn.Ok(it)
	}
}

// NewEmbed embeds every chunk text and checks the vector dimension when dims
// is positive.
func NewEmbed(e Embedder, dims int) fn.Stage[Item, Item] {
	return func(ctx context.Context, it Item) fn.Result[Item] {
		vecs, err := embedChunks(ctx, e, it.Chunks, dims)
		if err != nil {
			return fn.Err[Item](err)
		}
		it.Embeddings = vecs
		return fn.Ok(it)
	}
}

func embedChunks(ctx context.Context, e Embedder, chunks []segment.Chunk, dims int) ([][]float32, error) {
	texts := fn.Map(chunks, func(c segment.Chunk) string { return c.Text })
	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingest: embed: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("ingest: embed: %d vectors for %d chunks", len(vecs), len(chunks))
	}
	if dims > 0 {
		for i, v := range vecs {
			if len(v) != dims {
				return nil, fmt.Errorf("ingest: embed chunk %d: %w: got %d, want %d", i, record.ErrDimensionMismatch, len(v), dims)
			}
		}
	}
	return vecs, nil
}

// BuildRecords pairs chunks with embeddings and attaches restrictions.
var BuildRecords fn.Stage[Item, Item] = func(_ context.Context, it Item) fn.Result[Item] {
	recs, err := record.BuildRecords(it.Chunks, it.Embeddings, it.Meta, it.Meta.Filename)
	if err != nil {
		return fn.Err[Item](err)
	}
	it.Records = recs
	return fn.Ok(it)
}

// NewCatalog stores the video and its sections. Failures are logged and do
// not fail the item.
func NewCatalog(c Catalog, log *slog.Logger) fn.Stage[Item, Item] {
	return func(ctx context.Context, it Item) fn.Result[Item] {
		if c == nil {
			return fn.Ok(it)
		}
		sections := make([]graph.Section, len(it.Chunks))
		for i, ch := range it.Chunks {
			sections[i] = graph.Section{
				ID:       it.Records[i].ID,
				Filename: it.Meta.Filename,
				Index:    i,
				Title:    ch.SectionTitle,
				Start:    ch.Start,
				End:      ch.End,
			}
		}
		if err := c.SaveVideo(ctx, graphVideo(it.Meta), sections); err != nil {
			log.Warn("ingest: catalog save", "item", it.Filename, "error", err)
		}
		return fn.Ok(it)
	}
}

func graphVideo(m metadata.Video) graph.Video {
	return graph.Video{
		Filename:          m.Filename,
		GCSURL:            m.GCSURL,
		Division:          m.Division,
		Emission:          m.Emission,
		Segment:           m.Segment,
		Language:          m.Language,
		ApplicabilityType: m.ApplicabilityType,
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// step wraps a stage with a logging tap, a span and a duration histogram.
func step[In, Out any](name string, deps Deps, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	traced := fn.TracedStage("ingest."+name, stage, attribute.String("stage", name))
	timed := func(ctx context.Context, in In) fn.Result[Out] {
		start := time.Now()
		res := traced(ctx, in)
		deps.Metrics.observeStage(name, start)
		return res
	}
	return fn.Then(LoggedTap[In](name, deps.logger()), timed)
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[string, Item] {
	log := deps.logger()

	// Compose: Resolve → Fetch → Transcribe → Detect → Segment → Embed → Records → Catalog
	resolved := step("resolve", deps, NewResolve(deps.Lookup))
	fetched := fn.Then(resolved, step("fetch", deps, NewFetch(deps.Fetcher, deps.WorkDir)))
	transcribed := fn.Then(fetched, step("transcribe", deps, NewTranscribe(deps.Audio, deps.Transcriber)))
	detected := fn.Then(transcribed, step("boundaries", deps, NewDetect(deps.Boundaries)))
	segmented := fn.Then(detected, step("segment", deps, NewSegment(deps.Segment)))
	embedded := fn.Then(segmented, step("embed", deps, NewEmbed(deps.Embedder, deps.Dims)))
	built := fn.Then(embedded, step("records", deps, BuildRecords))
	return fn.Then(built, step("catalog", deps, NewCatalog(deps.Catalog, log)))
}
