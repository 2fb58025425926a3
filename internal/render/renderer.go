package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tallyho/internal/model"
)

// Layout constants, in pixels from the top-left corner. Text that does not
// fit the panel is clipped, never resized.
const (
	marginX  = 30
	marginY  = 30
	lineStep = 40
	stampGap = 20
)

const timestampFormat = "2006-01-02 15:04:05"

// Renderer draws aircraft details into a fixed-size monochrome frame.
type Renderer struct {
	width   int
	height  int
	title   font.Face
	small   font.Face
	printer *message.Printer
	log     *logrus.Entry

	// Now is swappable so tests can pin the timestamp line.
	Now func() time.Time
}

func New(width, height int, fontFile string, log *logrus.Entry) (*Renderer, error) {
	title, small, err := loadFaces(fontFile, log)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		width:   width,
		height:  height,
		title:   title,
		small:   small,
		printer: message.NewPrinter(language.English),
		log:     log,
		Now:     time.Now,
	}, nil
}

// Lines formats the six detail lines for an aircraft. Missing strings come
// out as N/A so the layout never shifts.
func (r *Renderer) Lines(ac *model.Aircraft) []string {
	altitude := r.printer.Sprintf("%d ft", int(math.Round(ac.Position.AltitudeFt)))
	if ac.OnGround {
		altitude = "ground"
	}
	return []string{
		"Flight: " + orNA(ac.Callsign),
		"Registration: " + orNA(ac.Registration),
		"Aircraft Type: " + orNA(ac.Type),
		"Altitude: " + altitude,
		r.printer.Sprintf("Ground Speed: %d knots", int(math.Round(ac.GroundSpeedKt))),
		r.printer.Sprintf("Distance: %.1f NM", ac.DistanceNM),
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Frame renders the detail lines plus a Last Updated stamp. The result is
// always exactly width x height on a two color palette.
func (r *Renderer) Frame(ac *model.Aircraft) *image.Paletted {
	canvas := r.blankCanvas()

	y := marginY
	for _, line := range r.Lines(ac) {
		r.drawText(canvas, r.title, marginX, y, line)
		y += lineStep
	}

	stamp := "Last Updated: " + r.Now().Format(timestampFormat)
	r.drawText(canvas, r.small, marginX, y+stampGap, stamp)

	return r.quantize(canvas)
}

// Idle renders the empty-sky frame. It carries no timestamp, so
// consecutive idle frames are byte identical and redundant refreshes can
// be skipped.
func (r *Renderer) Idle() *image.Paletted {
	canvas := r.blankCanvas()
	r.drawText(canvas, r.title, marginX, marginY, "No aircraft in range")
	return r.quantize(canvas)
}

func (r *Renderer) blankCanvas() *image.Gray {
	canvas := image.NewGray(image.Rect(0, 0, r.width, r.height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	return canvas
}

// drawText puts the top-left corner of s at (x, y), converting to the
// baseline origin the font drawer wants.
func (r *Renderer) drawText(dst draw.Image, face font.Face, x, y int, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

// quantize dithers the antialiased canvas down to pure black and white.
func (r *Renderer) quantize(src image.Image) *image.Paletted {
	dst := image.NewPaletted(src.Bounds(), color.Palette{color.White, color.Black})
	draw.FloydSteinberg.Draw(dst, src.Bounds(), src, image.Point{})
	return dst
}
