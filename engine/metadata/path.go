package metadata

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// MinPathDepth is the number of path elements a library video needs for its
// attributes to be read from the folder names.
const MinPathDepth = 8

// ErrShallowPath is returned by FromPath for paths with too few elements.
var ErrShallowPath = fmt.Errorf("%w: path too shallow", ErrMissingField)

// FromPath reads attributes from a library path laid out as
// .../<emission>/<segment>/<series>/<model>/<fuel>/<aggregate>/<name>.mp4.
// The storage URL is gcsPrefix followed by the file name.
func FromPath(path, gcsPrefix string) (Video, error) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < MinPathDepth {
		return Video{}, fmt.Errorf("%w: %s", ErrShallowPath, path)
	}
	n := len(parts)
	name := parts[n-1]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return Video{
		Filename:   stem + ".mp4",
		GCSURL:     gcsPrefix + stem + ".mp4",
		Emission:   parts[n-7],
		Segment:    parts[n-6],
		Series:     []string{parts[n-5]},
		ModelNames: []string{parts[n-4]},
		FuelType:   parts[n-3],
		Aggregate:  parts[n-2],
	}, nil
}

// ScanVideos walks root and maps each .mp4 stem to its path. When stems
// repeat the last path walked wins.
func ScanVideos(root string) (map[string]string, error) {
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".mp4") {
			return nil
		}
		out[strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("metadata: scan %s: %w", root, err)
	}
	return out, nil
}

// PathIndex resolves metadata from a scanned video library.
type PathIndex struct {
	paths     map[string]string
	gcsPrefix string
}

// NewPathIndex scans root and returns a Lookup over the videos found.
func NewPathIndex(root, gcsPrefix string) (*PathIndex, error) {
	paths, err := ScanVideos(root)
	if err != nil {
		return nil, err
	}
	return &PathIndex{paths: paths, gcsPrefix: gcsPrefix}, nil
}

// Len reports the number of videos indexed.
func (p *PathIndex) Len() int { return len(p.paths) }

// Resolve looks up a filename with or without its extension.
func (p *PathIndex) Resolve(filename string) (Video, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	path, ok := p.paths[stem]
	if !ok {
		return Video{}, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return FromPath(path, p.gcsPrefix)
}

// Lookup implements Lookup.
func (p *PathIndex) Lookup(_ context.Context, filename string) (Video, error) {
	return p.Resolve(filename)
}
