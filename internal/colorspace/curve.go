package colorspace

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Curve maps an encoded channel value in [0,1] to linear light.
type Curve interface {
	Linear(v float64) float64
}

type srgbCurve struct{}

func (srgbCurve) Linear(v float64) float64 {
	r, _, _ := colorful.Color{R: v, G: v, B: v}.LinearRgb()
	return r
}

type gammaCurve float64

func (g gammaCurve) Linear(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Pow(v, float64(g))
}

// tableCurve is an ICC curv table sampled uniformly over [0,1].
type tableCurve []float64

func (t tableCurve) Linear(v float64) float64 {
	if len(t) == 0 {
		return v
	}
	if v <= 0 {
		return t[0]
	}
	if v >= 1 {
		return t[len(t)-1]
	}
	pos := v * float64(len(t)-1)
	i := int(pos)
	frac := pos - float64(i)
	return t[i] + (t[i+1]-t[i])*frac
}

// parametricCurve implements ICC parametricCurveType function types 0-4.
type parametricCurve struct {
	kind                int
	g, a, b, c, d, e, f float64
}

func (p parametricCurve) Linear(x float64) float64 {
	var y float64
	switch p.kind {
	case 0:
		y = pow(x, p.g)
	case 1:
		if x >= -p.b/p.a {
			y = pow(p.a*x+p.b, p.g)
		}
	case 2:
		if x >= -p.b/p.a {
			y = pow(p.a*x+p.b, p.g) + p.c
		} else {
			y = p.c
		}
	case 3:
		if x >= p.d {
			y = pow(p.a*x+p.b, p.g)
		} else {
			y = p.c * x
		}
	case 4:
		if x >= p.d {
			y = pow(p.a*x+p.b, p.g) + p.e
		} else {
			y = p.c*x + p.f
		}
	default:
		y = x
	}
	return clamp01(y)
}

func pow(x, g float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Pow(x, g)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
