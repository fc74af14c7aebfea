package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// maxLineBytes bounds a single JSONL line; 3072 float vectors run ~70KB.
const maxLineBytes = 16 << 20

// ErrDimensionMismatch is returned when an embedding has the wrong length.
var ErrDimensionMismatch = errors.New("record: embedding dimension mismatch")

// Writer writes records as newline-delimited JSON.
type Writer struct {
	w *bufio.Writer
	n int
}

// NewWriter returns a Writer on w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes rec on its own line.
func (w *Writer) Write(rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record: encode %s: %w", rec.ID, err)
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("record: write: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("record: write: %w", err)
	}
	w.n++
	return nil
}

// WriteAll writes every record in order.
func (w *Writer) WriteAll(recs []Record) error {
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Count reports the records written so far.
func (w *Writer) Count() int { return w.n }

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("record: flush: %w", err)
	}
	return nil
}

// Reader reads records leniently: blank lines are ignored, leading "//" and
// "#" markers are stripped, and lines that do not decode or carry no
// embedding are logged and skipped.
type Reader struct {
	sc      *bufio.Scanner
	line    int
	skipped int
	logger  *slog.Logger
}

// NewReader returns a Reader on r. A nil logger uses slog.Default.
func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc, logger: logger}
}

// Next returns the next usable record, or io.EOF.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		text := cleanLine(r.sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			r.skipped++
			r.logger.Warn("record: skip malformed line", "line", r.line, "error", err)
			continue
		}
		if len(rec.Embedding) == 0 {
			r.skipped++
			r.logger.Warn("record: skip record without embedding", "line", r.line, "id", rec.ID)
			continue
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("record: read line %d: %w", r.line+1, err)
	}
	return Record{}, io.EOF
}

// Line reports the last line number read.
func (r *Reader) Line() int { return r.line }

// Skipped reports how many non-blank lines were rejected.
func (r *Reader) Skipped() int { return r.skipped }

// ReadAll drains r.
func ReadAll(rd io.Reader, logger *slog.Logger) ([]Record, int, error) {
	r := NewReader(rd, logger)
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, r.Skipped(), nil
		}
		if err != nil {
			return out, r.Skipped(), err
		}
		out = append(out, rec)
	}
}

// ValidateFile checks that every usable record in the JSONL file at path has
// an embedding of exactly dims values. Lines the Reader tolerates (blank,
// comment-prefixed, malformed, no embedding) are skipped the same way; the
// first wrong-sized embedding fails the file. It returns the number of
// records checked.
func ValidateFile(path string, dims int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("record: validate: %w", err)
	}
	defer f.Close()
	return Validate(f, dims)
}

// Validate is ValidateFile over a reader.
func Validate(rd io.Reader, dims int) (int, error) {
	r := NewReader(rd, slog.New(slog.DiscardHandler))
	n := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if len(rec.Embedding) != dims {
			return n, fmt.Errorf("%w: line %d: got %d, want %d", ErrDimensionMismatch, r.Line(), len(rec.Embedding), dims)
		}
		n++
	}
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	for {
		switch {
		case strings.HasPrefix(s, "//"):
			s = strings.TrimSpace(s[2:])
		case strings.HasPrefix(s, "#"):
			s = strings.TrimSpace(s[1:])
		default:
			return s
		}
	}
}
