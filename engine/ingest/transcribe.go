package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WessleyAI/vidrag/engine/transcript"
	"github.com/WessleyAI/vidrag/pkg/media"
	"github.com/WessleyAI/vidrag/pkg/whisper"
)

// WhisperTranscriber adapts a whisper client to Transcriber.
type WhisperTranscriber struct {
	Client *whisper.Client
}

// Transcribe implements Transcriber.
func (w WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]transcript.Line, error) {
	t, err := w.Client.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	return SegmentsToLines(t.Segments), nil
}

// SegmentsToLines converts whisper segments into normalized lines.
func SegmentsToLines(segs []whisper.Segment) []transcript.Line {
	lines := make([]transcript.Line, 0, len(segs))
	for _, s := range segs {
		lines = append(lines, transcript.Line{Start: s.Start, End: s.End, Text: s.Text})
	}
	return transcript.Normalize(lines)
}

// FolderReport counts the outcome of a folder run.
type FolderReport struct {
	Files     int
	Succeeded int
	Failed    []Failure
}

// TranscribeFolder walks src for video files and writes one pipe-format
// transcript per video into dst, named after the video stem. A failed video
// is logged and skipped.
func TranscribeFolder(ctx context.Context, src, dst string, audio AudioExtractor, tr Transcriber, logger *slog.Logger) (FolderReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var videos []string
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && media.IsVideo(path) {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return FolderReport{}, fmt.Errorf("ingest: walk %s: %w", src, err)
	}
	sort.Strings(videos)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return FolderReport{}, fmt.Errorf("ingest: create %s: %w", dst, err)
	}

	rep := FolderReport{Files: len(videos)}
	for _, v := range videos {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := transcribeOne(ctx, v, dst, audio, tr); err != nil {
			logger.Error("ingest: transcribe failed", "item", v, "error", err)
			rep.Failed = append(rep.Failed, Failure{Item: v, Err: err})
			continue
		}
		rep.Succeeded++
		logger.Info("ingest: transcribed", "item", v)
	}
	return rep, nil
}

func transcribeOne(ctx context.Context, video, dst string, audio AudioExtractor, tr Transcriber) error {
	wav, err := audio.ExtractAudio(ctx, video)
	if err != nil {
		return err
	}
	defer os.Remove(wav)

	lines, err := tr.Transcribe(ctx, wav)
	if err != nil {
		return err
	}
	stem := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	out := filepath.Join(dst, stem+".txt")
	if err := os.WriteFile(out, []byte(transcript.Format(lines)+"\n"), 0o644); err != nil {
		return fmt.Errorf("ingest: write transcript %s: %w", out, err)
	}
	return nil
}
