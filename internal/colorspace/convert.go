package colorspace

import (
	"fmt"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
)

// Kind tells whether a conversion source came from the image or was assumed.
type Kind int

const (
	// Declared: the image embedded the source profile.
	Declared Kind = iota
	// Assumed: no usable declaration, the source space is a stated default.
	Assumed
)

func (k Kind) String() string {
	if k == Assumed {
		return "assumed"
	}
	return "declared"
}

// Conversion is a source/target profile pair. The target is always sRGB;
// Apply encodes with the sRGB transfer curve.
type Conversion struct {
	Kind   Kind
	Source *Profile
	Target *Profile
}

// FromICC builds a declared conversion from an embedded ICC profile to sRGB.
func FromICC(icc []byte) (Conversion, error) {
	src, err := ParseICC(icc)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{Kind: Declared, Source: src, Target: SRGB()}, nil
}

// Assume builds a conversion from an assumed source space to sRGB.
func Assume(src *Profile) Conversion {
	return Conversion{Kind: Assumed, Source: src, Target: SRGB()}
}

func (c Conversion) String() string {
	return fmt.Sprintf("%s %s -> %s", c.Kind, c.Source, c.Target)
}

// Apply converts img in place. Alpha is left untouched.
func (c Conversion) Apply(img *image.NRGBA) error {
	if c.Source == nil || c.Target == nil {
		return fmt.Errorf("colorspace: conversion requires source and target profiles")
	}
	if c.Source.Equal(c.Target) {
		return nil
	}

	var targetInv mat.Dense
	if err := targetInv.Inverse(c.Target.toXYZ); err != nil {
		return fmt.Errorf("colorspace: invert target matrix: %w", err)
	}
	var combined mat.Dense
	combined.Mul(&targetInv, c.Source.toXYZ)
	m := [9]float64{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i*3+j] = combined.At(i, j)
		}
	}

	var in [3][256]float64
	for ch := 0; ch < 3; ch++ {
		for v := 0; v < 256; v++ {
			in[ch][v] = c.Source.curves[ch].Linear(float64(v) / 255)
		}
	}
	out := encodeTable()

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r, g, bl := in[0][row[i]], in[1][row[i+1]], in[2][row[i+2]]
			row[i] = out.lookup(m[0]*r + m[1]*g + m[2]*bl)
			row[i+1] = out.lookup(m[3]*r + m[4]*g + m[5]*bl)
			row[i+2] = out.lookup(m[6]*r + m[7]*g + m[8]*bl)
		}
	}
	return nil
}

const encodeSteps = 1 << 14

// linearToSRGB quantizes linear light to 8-bit sRGB through a lookup table.
type linearToSRGB [encodeSteps + 1]uint8

func encodeTable() *linearToSRGB {
	var t linearToSRGB
	for i := range t {
		v := float64(i) / encodeSteps
		t[i] = uint8(math.Round(colorful.LinearRgb(v, v, v).Clamped().R * 255))
	}
	return &t
}

func (t *linearToSRGB) lookup(v float64) uint8 {
	if v <= 0 {
		return t[0]
	}
	if v >= 1 {
		return t[encodeSteps]
	}
	return t[int(v*encodeSteps+0.5)]
}
