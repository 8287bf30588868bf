package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontSource hands out caption faces at any pixel size.
type FontSource struct {
	font *opentype.Font
}

// LoadFont parses the TrueType/OpenType file at path, taking the first face of
// a collection. An empty path selects the embedded Go Regular font.
func LoadFont(path string) (*FontSource, error) {
	if strings.TrimSpace(path) == "" {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("%w: embedded font: %v", ErrFontUnavailable, err)
		}
		return &FontSource{font: f}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	collection, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrFontUnavailable, path, err)
	}
	f, err := collection.Font(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFontUnavailable, path, err)
	}
	return &FontSource{font: f}, nil
}

// Face returns a face whose em is size pixels.
func (s *FontSource) Face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(s.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: size %.1f: %v", ErrFontUnavailable, size, err)
	}
	return face, nil
}

// textMetrics is the rendered extent of a string: advance width, ascent
// above the baseline and total line height.
type textMetrics struct {
	Width  float64
	Ascent float64
	Height float64
}

func measureText(face font.Face, text string) (textMetrics, error) {
	if strings.TrimSpace(text) == "" {
		return textMetrics{}, fmt.Errorf("%w: empty caption", ErrTextMeasurement)
	}

	m := face.Metrics()
	tm := textMetrics{
		Width:  fixedToFloat(font.MeasureString(face, text)),
		Ascent: fixedToFloat(m.Ascent),
		Height: fixedToFloat(m.Ascent + m.Descent),
	}
	if tm.Width <= 0 || tm.Height <= 0 || math.IsNaN(tm.Width) {
		return textMetrics{}, fmt.Errorf("%w: %q measured %.2fx%.2f", ErrTextMeasurement, text, tm.Width, tm.Height)
	}
	return tm, nil
}

// drawText renders text with its baseline starting at (x, baseline), blending
// c at opacity over dst.
func drawText(dst draw.Image, face font.Face, text string, x, baseline float64, c color.NRGBA, opacity float64) {
	c.A = uint8(math.Round(clampUnit(opacity) * 255))
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(math.Round(x * 64)),
			Y: fixed.Int26_6(math.Round(baseline * 64)),
		},
	}
	d.DrawString(text)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
