// Package imagefile writes frames to a PNG on disk, for previews and for
// piping into other tooling.
package imagefile

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

type Sink struct {
	path string
}

func New(path string) *Sink {
	return &Sink{path: path}
}

func (s *Sink) Name() string { return "file:" + s.path }

// Push writes to a temp file in the target directory, then renames it over
// the destination so readers never see a half-written PNG.
func (s *Sink) Push(ctx context.Context, frame image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".frame-*.png")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, frame); err != nil {
		tmp.Close()
		return fmt.Errorf("error encoding PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *Sink) Close() error { return nil }
