// Package segment partitions a time-ordered transcript into titled chunks at
// boundary hints and folds chunks shorter than a minimum duration into their
// predecessor. It is the shared core of every ingestion path.
package segment

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/WessleyAI/vidrag/engine/timecode"
	"github.com/WessleyAI/vidrag/engine/transcript"
)

const (
	// DefaultTitle names the single chunk produced when no hints exist.
	DefaultTitle = "Process"
	// DefaultMinDuration is the shortest chunk kept on its own.
	DefaultMinDuration = 20 * time.Second
)

// ErrEmptyTranscript is returned when there are no lines to partition.
var ErrEmptyTranscript = errors.New("segment: empty transcript")

// Hint is an untrusted claim that a new section starts at Start seconds.
type Hint struct {
	Start float64
	Title string
}

// Chunk is a contiguous span of transcript lines under one section title.
type Chunk struct {
	SectionTitle string
	Start        float64
	End          float64
	Text         string
	Lines        []transcript.Line
}

// Duration returns the chunk span.
func (c Chunk) Duration() time.Duration {
	return time.Duration((c.End - c.Start) * float64(time.Second))
}

// StartTS returns Start in HH:MM:SS.ss form.
func (c Chunk) StartTS() string { return timecode.Format(c.Start) }

// EndTS returns End in HH:MM:SS.ss form.
func (c Chunk) EndTS() string { return timecode.Format(c.End) }

type chunkJSON struct {
	SectionTitle string `json:"section_title"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Text         string `json:"chunk_text"`
}

// MarshalJSON encodes timestamps as display strings; Lines are not encoded.
func (c Chunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(chunkJSON{
		SectionTitle: c.SectionTitle,
		Start:        c.StartTS(),
		End:          c.EndTS(),
		Text:         c.Text,
	})
}

// UnmarshalJSON accepts the MarshalJSON form.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var raw chunkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := timecode.Parse(raw.Start)
	if err != nil {
		return err
	}
	end, err := timecode.Parse(raw.End)
	if err != nil {
		return err
	}
	*c = Chunk{SectionTitle: raw.SectionTitle, Start: start, End: end, Text: raw.Text}
	return nil
}

// Options configures Segment.
type Options struct {
	MinDuration  time.Duration
	DefaultTitle string
}

// DefaultOptions returns the 20s minimum and the "Process" fallback title.
func DefaultOptions() Options {
	return Options{MinDuration: DefaultMinDuration, DefaultTitle: DefaultTitle}
}
