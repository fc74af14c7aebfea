// Package metadata resolves the catalog attributes of a video by filename,
// either from the relational metadata view or from the folder layout the
// video library is stored in.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// GlobalApplicability marks videos that apply to every vehicle variant.
const GlobalApplicability = "Global"

var (
	// ErrNotFound is returned when no metadata row exists for a filename.
	ErrNotFound = errors.New("metadata: not found")
	// ErrMissingField is returned when a required attribute is empty.
	ErrMissingField = errors.New("metadata: missing field")
)

// Video holds the catalog attributes attached to every chunk of a video.
type Video struct {
	Filename          string
	GCSURL            string
	Division          string
	Emission          string
	Segment           string
	Language          string
	ApplicabilityType string
	Series            []string
	ModelNames        []string
	FuelType          string
	Aggregate         string
}

// Global reports whether the video applies to all variants.
func (v Video) Global() bool { return v.ApplicabilityType == GlobalApplicability }

// Validate checks the attributes every ingest needs.
func (v Video) Validate() error {
	if strings.TrimSpace(v.Filename) == "" {
		return fmt.Errorf("%w: filename", ErrMissingField)
	}
	if strings.TrimSpace(v.GCSURL) == "" {
		return fmt.Errorf("%w: gcs_url for %s", ErrMissingField, v.Filename)
	}
	return nil
}

// Lookup finds the metadata for a video filename.
type Lookup interface {
	Lookup(ctx context.Context, filename string) (Video, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, filename string) (Video, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, filename string) (Video, error) {
	return f(ctx, filename)
}
