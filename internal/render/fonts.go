package render

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Point sizes for the detail lines and the timestamp line.
const (
	titleSizePt = 24
	smallSizePt = 18
)

// loadFaces builds the two text faces. A configured font file serves both
// sizes; when it is unreadable or unparsable the bundled Go fonts stand in,
// so a bad path never takes the display down.
func loadFaces(fontFile string, log *logrus.Entry) (font.Face, font.Face, error) {
	if fontFile != "" {
		title, small, err := facesFromFile(fontFile)
		if err == nil {
			return title, small, nil
		}
		log.WithError(err).Warnf("font file %s unusable, falling back to the bundled faces", fontFile)
	}

	title, err := newFace(gobold.TTF, titleSizePt)
	if err != nil {
		return nil, nil, err
	}
	small, err := newFace(goregular.TTF, smallSizePt)
	if err != nil {
		return nil, nil, err
	}
	return title, small, nil
}

func facesFromFile(fontFile string) (font.Face, font.Face, error) {
	data, err := os.ReadFile(fontFile)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading font file: %w", err)
	}
	title, err := newFace(data, titleSizePt)
	if err != nil {
		return nil, nil, err
	}
	small, err := newFace(data, smallSizePt)
	if err != nil {
		return nil, nil, err
	}
	return title, small, nil
}

func newFace(ttf []byte, sizePt float64) (font.Face, error) {
	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("error parsing font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("error building %gpt face: %w", sizePt, err)
	}
	return face, nil
}
