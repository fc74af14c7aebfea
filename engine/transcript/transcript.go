// Package transcript holds time-stamped transcript lines and the
// pipe-delimited text format ("HH:MM:SS | HH:MM:SS | text") the pipeline
// stores them in.
package transcript

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/WessleyAI/vidrag/engine/timecode"
)

// Line is one time-stamped span of spoken text. Start and End are seconds.
type Line struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End-Start in seconds.
func (l Line) Duration() float64 { return l.End - l.Start }

const separator = " | "

var (
	bracketNoise = regexp.MustCompile(`\[(?:Music|Applause|Laughter|Cheering|Inaudible)\]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// CleanText removes caption noise markers, decodes the common HTML entities
// and collapses whitespace.
func CleanText(text string) string {
	text = bracketNoise.ReplaceAllString(text, "")
	text = strings.NewReplacer(
		"&#39;", "'",
		"&amp;", "&",
		"&quot;", `"`,
		"&lt;", "<",
		"&gt;", ">",
	).Replace(text)
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Normalize drops blank lines, clamps End to at least Start and orders lines
// by Start (stable, so equal starts keep their input order).
func Normalize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		l.Text = CleanText(l.Text)
		if l.Text == "" {
			continue
		}
		if l.End < l.Start {
			l.End = l.Start
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Parse reads the pipe-delimited format. Rows without exactly three fields or
// with unparsable timestamps are skipped.
func Parse(r io.Reader) ([]Line, error) {
	var lines []Line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), separator)
		if len(parts) != 3 {
			continue
		}
		start, err := timecode.Parse(parts[0])
		if err != nil {
			continue
		}
		end, err := timecode.Parse(parts[1])
		if err != nil {
			continue
		}
		lines = append(lines, Line{Start: start, End: end, Text: strings.TrimSpace(parts[2])})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return Normalize(lines), nil
}

// ParseString is Parse over an in-memory transcript.
func ParseString(s string) ([]Line, error) {
	return Parse(strings.NewReader(s))
}

// Format renders lines in the pipe-delimited format, one per row.
func Format(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(timecode.Format(l.Start))
		b.WriteString(separator)
		b.WriteString(timecode.Format(l.End))
		b.WriteString(separator)
		b.WriteString(strings.ReplaceAll(l.Text, "\n", " "))
	}
	return b.String()
}

// Join returns the space-joined texts of lines in order.
func Join(lines []Line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, " ")
}
