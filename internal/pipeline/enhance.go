package pipeline

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	shadowClip      = 0.005
	highlightClip   = 0.0
	saturationBoost = 1.15
)

// enhance applies the cosmetic tone pass used before watermarking and returns
// a new image.
func enhance(img *image.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	contrastStretch(out, shadowClip, highlightClip)
	saturate(out, saturationBoost)
	return adaptiveSharpen(out)
}

// contrastStretch maps the value below which lowClip of all channel samples
// fall to 0 and the value above which highClip fall to 255.
func contrastStretch(img *image.NRGBA, lowClip, highClip float64) {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			hist[row[i]]++
			hist[row[i+1]]++
			hist[row[i+2]]++
		}
	}

	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return
	}

	black := 0
	for acc, limit := 0, int(float64(total)*lowClip); black < 255; black++ {
		acc += hist[black]
		if acc > limit {
			break
		}
	}
	white := 255
	for acc, limit := 0, int(float64(total)*highClip); white > 0; white-- {
		acc += hist[white]
		if acc > limit {
			break
		}
	}
	if white <= black {
		return
	}

	var lut [256]uint8
	scale := 255 / float64(white-black)
	for v := range lut {
		lut[v] = clampByte(math.Round(float64(v-black) * scale))
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			row[i] = lut[row[i]]
			row[i+1] = lut[row[i+1]]
			row[i+2] = lut[row[i+2]]
		}
	}
}

// saturate scales HSL saturation by factor, keeping hue and lightness.
func saturate(img *image.NRGBA, factor float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			if row[i] == row[i+1] && row[i+1] == row[i+2] {
				continue
			}
			c := colorful.Color{R: float64(row[i]) / 255, G: float64(row[i+1]) / 255, B: float64(row[i+2]) / 255}
			h, s, l := c.Hsl()
			out := colorful.Hsl(h, math.Min(1, s*factor), l).Clamped()
			row[i], row[i+1], row[i+2] = out.RGB255()
		}
	}
}

var (
	sobelX = [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY = [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}
)

// adaptiveSharpen blends an unsharp-masked copy in proportion to local edge
// strength, so flat areas and noise are left mostly alone.
func adaptiveSharpen(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	sigma := math.Max(0.6, float64(max(b.Dx(), b.Dy()))/2000)
	sharp := imaging.Sharpen(img, sigma)

	gray := imaging.Grayscale(img)
	gx := imaging.Convolve3x3(gray, sobelX, &imaging.ConvolveOptions{Abs: true})
	gy := imaging.Convolve3x3(gray, sobelY, &imaging.ConvolveOptions{Abs: true})

	out := imaging.Clone(img)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			e := (float64(gx.Pix[gx.PixOffset(x, y)]) + float64(gy.Pix[gy.PixOffset(x, y)])) / 255
			w := math.Min(1, e)
			if w == 0 {
				continue
			}
			i := out.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				o := float64(out.Pix[i+ch])
				s := float64(sharp.Pix[i+ch])
				out.Pix[i+ch] = clampByte(math.Round(o + w*(s-o)))
			}
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
