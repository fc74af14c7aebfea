// Package timecode converts between transcript timestamps (HH:MM:SS.ss) and
// float seconds. Display strings are always centisecond precision.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalid is returned for strings that are not H:MM:SS or MM:SS timestamps.
var ErrInvalid = errors.New("invalid timestamp")

// Parse converts "HH:MM:SS(.ss)", "H:MM:SS" or "MM:SS(.ss)" into seconds.
func Parse(ts string) (float64, error) {
	ts = strings.TrimSpace(ts)
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("timecode: %q: %w", ts, ErrInvalid)
	}
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("timecode: hours %q: %w", parts[0], ErrInvalid)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("timecode: minutes %q: %w", parts[1], ErrInvalid)
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || s < 0 || s >= 60 || math.IsNaN(s) {
		return 0, fmt.Errorf("timecode: seconds %q: %w", parts[2], ErrInvalid)
	}
	return float64(h)*3600 + float64(m)*60 + s, nil
}

// Seconds is Parse with a zero fallback for unparsable input.
func Seconds(ts string) float64 {
	v, err := Parse(ts)
	if err != nil {
		return 0
	}
	return v
}

// Format renders seconds as HH:MM:SS.ss. Negative input is clamped to zero.
func Format(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	cs := int64(math.Round(sec * 100))
	h := cs / 360000
	m := (cs / 6000) % 60
	s := (cs / 100) % 60
	frac := cs % 100
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, frac)
}
