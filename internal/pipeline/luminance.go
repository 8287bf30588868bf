package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/dunamismax/imglab/internal/domain"
)

// Rec. 709 luma weights.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// SampleLuminance averages 0.2126R + 0.7152G + 0.0722B over region, with
// channels scaled to [0,1]. Alpha is ignored and img is not modified.
func SampleLuminance(img image.Image, region domain.Region) (float64, error) {
	rect := region.Rect().Intersect(img.Bounds())
	if rect.Empty() {
		return 0, fmt.Errorf("%w: %+v", ErrEmptyRegion, region)
	}

	var sum float64
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			row := nrgba.Pix[nrgba.PixOffset(rect.Min.X, y):nrgba.PixOffset(rect.Max.X, y)]
			for i := 0; i+2 < len(row); i += 4 {
				sum += (lumaR*float64(row[i]) + lumaG*float64(row[i+1]) + lumaB*float64(row[i+2])) / 255
			}
		}
	} else {
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				sum += (lumaR*float64(c.R) + lumaG*float64(c.G) + lumaB*float64(c.B)) / 0xFFFF
			}
		}
	}

	avg := sum / float64(rect.Dx()*rect.Dy())
	return clampUnit(avg), nil
}

// CaptionColor picks black over bright backgrounds (luminance >= 0.5) and
// white over dark ones.
func CaptionColor(luminance float64) color.NRGBA {
	if luminance >= 0.5 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
}
