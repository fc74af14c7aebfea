package transcript

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	in := strings.Join([]string{
		"00:00:00 | 00:00:05 | Remove the fan cover",
		"",
		"garbage line",
		"00:00:05 | 00:00:09.50 | Loosen the bolts",
		"xx:00:05 | 00:00:09 | bad timestamp",
		"0:00:10 | 0:00:20 | Check   torque",
	}, "\n")
	lines, err := ParseString(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %+v", len(lines), lines)
	}
	if lines[1].End != 9.5 {
		t.Errorf("end = %v, want 9.5", lines[1].End)
	}
	if lines[2].Text != "Check torque" {
		t.Errorf("text = %q", lines[2].Text)
	}
}

func TestNormalize(t *testing.T) {
	lines := Normalize([]Line{
		{Start: 10, End: 12, Text: "b"},
		{Start: 0, End: 5, Text: "a"},
		{Start: 12, End: 11, Text: "c"},
		{Start: 13, End: 14, Text: "  [Music] "},
	})
	if len(lines) != 3 {
		t.Fatalf("expected 3, got %d", len(lines))
	}
	if lines[0].Text != "a" || lines[1].Text != "b" {
		t.Errorf("order wrong: %+v", lines)
	}
	if lines[2].End != 12 {
		t.Errorf("end not clamped: %+v", lines[2])
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	orig := []Line{
		{Start: 0, End: 4.25, Text: "first"},
		{Start: 4.25, End: 3725.5, Text: "second\nline"},
	}
	out := Format(orig)
	if !strings.HasPrefix(out, "00:00:00.00 | 00:00:04.25 | first\n") {
		t.Fatalf("unexpected format: %q", out)
	}
	back, err := ParseString(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 2 || back[1].End != 3725.5 || back[1].Text != "second line" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("[Applause] it&#39;s  &amp; done ")
	if got != "it's & done" {
		t.Fatalf("got %q", got)
	}
}

func TestJoin(t *testing.T) {
	if got := Join([]Line{{Text: "A"}, {Text: "B"}, {Text: "C"}}); got != "A B C" {
		t.Fatalf("got %q", got)
	}
	if Join(nil) != "" {
		t.Fatal("expected empty")
	}
}
