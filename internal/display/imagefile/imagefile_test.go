package imagefile

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func testFrame() *image.Paletted {
	frame := image.NewPaletted(image.Rect(0, 0, 64, 32), color.Palette{color.White, color.Black})
	frame.SetColorIndex(10, 10, 1)
	return frame
}

func TestPushWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	sink := New(path)

	if err := sink.Push(context.Background(), testFrame()); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if got, want := decoded.Bounds(), image.Rect(0, 0, 64, 32); got != want {
		t.Errorf("bounds = %v, want %v", got, want)
	}
}

func TestPushOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")
	sink := New(path)

	if err := sink.Push(context.Background(), testFrame()); err != nil {
		t.Fatalf("first Push(): %v", err)
	}
	if err := sink.Push(context.Background(), testFrame()); err != nil {
		t.Fatalf("second Push(): %v", err)
	}

	// no temp files left behind
	leftovers, err := filepath.Glob(filepath.Join(dir, ".frame-*.png"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}
