// Package media prepares video files for transcription.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// VideoExts are the file extensions treated as videos when walking folders.
var VideoExts = []string{".mp4", ".mov", ".mkv", ".avi"}

// IsVideo reports whether path has a video extension.
func IsVideo(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range VideoExts {
		if ext == v {
			return true
		}
	}
	return false
}

// Extractor runs ffmpeg. Binary defaults to "ffmpeg" on PATH.
type Extractor struct {
	Binary string
	TmpDir string
}

// ExtractAudio writes a mono 16kHz WAV copy of the audio track of videoPath
// and returns its path.
func (e Extractor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	dir := e.TmpDir
	if dir == "" {
		dir = os.TempDir()
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	out := filepath.Join(dir, base+"_audio_16k.wav")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-y", "-loglevel", "error", "-i", videoPath,
		"-vn", "-ac", "1", "-ar", "16000",
		"-f", "wav",
		out,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("media: ffmpeg %s: %w: %s", filepath.Base(videoPath), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
