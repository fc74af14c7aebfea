package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WessleyAI/vidrag/engine/metadata"
	"github.com/WessleyAI/vidrag/engine/record"
	"github.com/WessleyAI/vidrag/engine/segment"
	"github.com/WessleyAI/vidrag/engine/transcript"
	"github.com/WessleyAI/vidrag/pkg/fn"
)

// ErrNoTranscripts is returned when a transcript folder holds no .txt files.
var ErrNoTranscripts = errors.New("ingest: no transcripts")

// ChunkFolder segments and embeds every .txt transcript in dir. A file that
// is empty or fails to embed is logged and skipped. Entries are named after
// the transcript stem.
func ChunkFolder(ctx context.Context, dir string, deps Deps) ([]record.ChunkEmbedding, FolderReport, error) {
	log := deps.logger()
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, FolderReport{}, fmt.Errorf("ingest: list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, FolderReport{}, fmt.Errorf("%w: %s", ErrNoTranscripts, dir)
	}
	sort.Strings(files)

	var out []record.ChunkEmbedding
	rep := FolderReport{Files: len(files)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, rep, err
		}
		entries, err := chunkFile(ctx, f, deps)
		if err != nil {
			log.Error("ingest: transcript failed", "item", filepath.Base(f), "error", err)
			rep.Failed = append(rep.Failed, Failure{Item: f, Err: err})
			continue
		}
		rep.Succeeded++
		log.Info("ingest: transcript chunked", "item", filepath.Base(f), "chunks", len(entries))
		out = append(out, entries...)
	}
	return out, rep, nil
}

func chunkFile(ctx context.Context, path string, deps Deps) ([]record.ChunkEmbedding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open transcript: %w", err)
	}
	lines, err := transcript.Parse(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("ingest: read transcript: %w", err)
	}
	if len(lines) == 0 {
		return nil, segment.ErrEmptyTranscript
	}

	var hints []segment.Hint
	if deps.Boundaries != nil {
		hints = deps.Boundaries.Detect(ctx, lines)
	}
	chunks, err := segment.Segment(lines, hints, deps.Segment)
	if err != nil {
		return nil, err
	}
	vecs, err := embedChunks(ctx, deps.Embedder, chunks, deps.Dims)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	entries := make([]record.ChunkEmbedding, len(chunks))
	for i, c := range chunks {
		entries[i] = record.NewChunkEmbedding(name, c, vecs[i])
	}
	return entries, nil
}

// RestrictReport counts the outcome of attaching metadata to chunk entries.
type RestrictReport struct {
	Entries int
	Records int
	// Missing counts entries whose video is not in the library.
	Missing int
	// Skipped counts entries without an embedding or with unusable metadata.
	Skipped int
}

// Restrict attaches catalog metadata to chunk entries and returns index
// records. Entries keep their order; ids number the chunks of each video
// from zero.
func Restrict(ctx context.Context, entries []record.ChunkEmbedding, lookup metadata.Lookup, logger *slog.Logger) ([]record.Record, RestrictReport) {
	if logger == nil {
		logger = slog.Default()
	}
	rep := RestrictReport{Entries: len(entries)}
	cache := make(map[string]metadata.Video)
	seen := make(map[string]int)
	var out []record.Record

	usable := fn.Filter(entries, func(e record.ChunkEmbedding) bool { return len(e.Embedding) > 0 })
	rep.Skipped = len(entries) - len(usable)
	for _, e := range usable {
		meta, ok := cache[e.Filename]
		if !ok {
			var err error
			meta, err = lookup.Lookup(ctx, e.Filename)
			switch {
			case errors.Is(err, metadata.ErrNotFound):
				logger.Warn("ingest: video not found", "item", e.Filename)
				rep.Missing++
				continue
			case err != nil:
				logger.Warn("ingest: unusable metadata", "item", e.Filename, "error", err)
				rep.Skipped++
				continue
			}
			cache[e.Filename] = meta
		}
		idx := seen[meta.Filename]
		seen[meta.Filename]++
		out = append(out, e.Record(meta, idx))
	}
	rep.Records = len(out)
	return out, rep
}
