// Package boundary asks a language model where the procedural sections of a
// transcript start and turns the reply into segment hints.
package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/WessleyAI/vidrag/engine/segment"
	"github.com/WessleyAI/vidrag/engine/timecode"
	"github.com/WessleyAI/vidrag/engine/transcript"
)

// Completer sends a prompt to a model and returns its raw text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrNoArray is returned by ParseHints when the reply has no JSON array.
var ErrNoArray = errors.New("boundary: no JSON array in reply")

var arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// Detector produces hints for transcripts. It never fails: call and parse
// errors are logged and yield no hints, which segments as a single chunk.
type Detector struct {
	completer Completer
	cache     Cache
	template  string
	logger    *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithCache sets the run-scoped cache. Without one every call reaches the
// completer.
func WithCache(c Cache) Option { return func(d *Detector) { d.cache = c } }

// WithPrompt overrides the prompt template.
func WithPrompt(template string) Option { return func(d *Detector) { d.template = template } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Detector) { d.logger = l } }

// NewDetector returns a Detector using the technician prompt.
func NewDetector(c Completer, opts ...Option) *Detector {
	d := &Detector{completer: c, template: TechnicianPrompt}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Detect returns the hints for lines. Results are cached by the exact
// pipe-formatted transcript text; failures are not cached.
func (d *Detector) Detect(ctx context.Context, lines []transcript.Line) []segment.Hint {
	text := transcript.Format(lines)
	if d.cache != nil {
		if hints, ok := d.cache.Get(text); ok {
			d.logger.Info("boundary: cache hit", "hints", len(hints))
			return hints
		}
	}
	if d.completer == nil {
		return nil
	}

	reply, err := d.completer.Complete(ctx, Render(d.template, text))
	if err != nil {
		d.logger.Error("boundary: completion failed", "error", err)
		return nil
	}
	hints, err := ParseHints(reply)
	if err != nil {
		d.logger.Error("boundary: parse reply", "error", err)
		return nil
	}
	if d.cache == nil {
		d.logger.Info("boundary: detected", "hints", len(hints))
		return hints
	}
	d.cache.Put(text, hints)
	d.logger.Info("boundary: detected", "hints", len(hints), "cached", d.cache.Len())
	return hints
}

type rawHint struct {
	Start json.RawMessage `json:"start"`
	Title string          `json:"title"`
}

// ParseHints extracts the first-to-last bracketed region of reply and decodes
// it as [{"start","title"}]. Start may be a timestamp string or seconds.
// Entries whose start cannot be read are dropped.
func ParseHints(reply string) ([]segment.Hint, error) {
	region := arrayPattern.FindString(reply)
	if region == "" {
		return nil, ErrNoArray
	}
	var raw []rawHint
	if err := json.Unmarshal([]byte(region), &raw); err != nil {
		return nil, fmt.Errorf("boundary: decode hints: %w", err)
	}
	hints := make([]segment.Hint, 0, len(raw))
	for _, r := range raw {
		start, ok := parseStart(r.Start)
		if !ok {
			continue
		}
		hints = append(hints, segment.Hint{Start: start, Title: strings.TrimSpace(r.Title)})
	}
	return hints, nil
}

func parseStart(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := timecode.Parse(s); err == nil {
			return v, true
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && v >= 0 {
			return v, true
		}
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f >= 0 {
		return f, true
	}
	return 0, false
}
