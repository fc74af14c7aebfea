package segment

import (
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/vidrag/engine/transcript"
)

// Partition splits lines into chunks opened by hints. Hints are sorted by
// numeric start on a copy; the input slice is left untouched. A chunk closes
// when a line starts at or after the next hint, advancing one hint per line,
// so the first hint always titles the first chunk.
//
// When the first line already reaches the second hint (duplicate or
// clustered leading hints) the first chunk is closed with no lines. Such
// zero-line chunks are discarded, so the later hint titles the first chunk.
func Partition(lines []transcript.Line, hints []Hint, defaultTitle string) ([]Chunk, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyTranscript
	}
	if defaultTitle == "" {
		defaultTitle = DefaultTitle
	}
	if len(hints) == 0 {
		return []Chunk{newChunk(defaultTitle, lines)}, nil
	}

	sorted := make([]Hint, len(hints))
	copy(sorted, hints)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	title := func(h Hint) string {
		if t := strings.TrimSpace(h.Title); t != "" {
			return t
		}
		return defaultTitle
	}

	var chunks []Chunk
	flush := func(t string, assigned []transcript.Line) {
		if len(assigned) == 0 {
			return
		}
		chunks = append(chunks, newChunk(t, assigned))
	}

	idx := 0
	open := 0
	for i, l := range lines {
		if idx+1 < len(sorted) && l.Start >= sorted[idx+1].Start {
			flush(title(sorted[idx]), lines[open:i])
			idx++
			open = i
		}
	}
	flush(title(sorted[idx]), lines[open:])
	return chunks, nil
}

// Merge folds every chunk shorter than minDuration into the previous merged
// chunk: its text is appended, the end extended and its title dropped. The
// head chunk has no predecessor, so while it is itself shorter than
// minDuration the following chunks fold into it. Chunks without text always
// fold. Only a sole remaining chunk can end up below minDuration, and
// merging the output again changes nothing.
func Merge(chunks []Chunk, minDuration time.Duration) []Chunk {
	var merged []Chunk
	for _, c := range chunks {
		if len(merged) == 0 {
			merged = append(merged, cloneChunk(c))
			continue
		}
		last := &merged[len(merged)-1]
		short := c.Duration() < minDuration
		headShort := len(merged) == 1 && last.Duration() < minDuration
		if short || headShort || strings.TrimSpace(c.Text) == "" {
			absorb(last, c)
			continue
		}
		merged = append(merged, cloneChunk(c))
	}
	return merged
}

// Segment runs Partition then Merge.
func Segment(lines []transcript.Line, hints []Hint, opts Options) ([]Chunk, error) {
	raw, err := Partition(lines, hints, opts.DefaultTitle)
	if err != nil {
		return nil, err
	}
	return Merge(raw, opts.MinDuration), nil
}

func absorb(dst *Chunk, src Chunk) {
	switch {
	case strings.TrimSpace(src.Text) == "":
	case dst.Text == "":
		dst.Text = src.Text
	default:
		dst.Text += " " + src.Text
	}
	if src.End > dst.End {
		dst.End = src.End
	}
	dst.Lines = append(dst.Lines, src.Lines...)
}

func cloneChunk(c Chunk) Chunk {
	c.Lines = append([]transcript.Line(nil), c.Lines...)
	return c
}

func newChunk(title string, lines []transcript.Line) Chunk {
	owned := append([]transcript.Line(nil), lines...)
	return Chunk{
		SectionTitle: title,
		Start:        owned[0].Start,
		End:          owned[len(owned)-1].End,
		Text:         transcript.Join(owned),
		Lines:        owned,
	}
}
