// Package colorspace converts pixels between RGB working spaces and sRGB.
//
// Profiles are reduced to an RGB to XYZ matrix relative to the D50 ICC
// connection space plus one tone curve per channel, which covers matrix/TRC
// ICC profiles and the built-in sRGB and Adobe RGB (1998) definitions.
package colorspace

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	whiteD50 = [3]float64{0.96422, 1.0, 0.82521}
	whiteD65 = [3]float64{0.95047, 1.0, 1.08883}

	bradford = mat.NewDense(3, 3, []float64{
		0.8951, 0.2664, -0.1614,
		-0.7502, 1.7135, 0.0367,
		0.0389, -0.0685, 1.0296,
	})
)

// Profile is an RGB colour space: a matrix into D50 XYZ and per-channel
// curves from encoded values to linear light.
type Profile struct {
	Name   string
	toXYZ  *mat.Dense
	curves [3]Curve
}

type chromaticity struct{ x, y float64 }

// SRGB returns the IEC 61966-2-1 sRGB profile.
func SRGB() *Profile {
	m := primariesToXYZ(
		chromaticity{0.64, 0.33},
		chromaticity{0.30, 0.60},
		chromaticity{0.15, 0.06},
		whiteD65,
	)
	c := srgbCurve{}
	return &Profile{Name: "sRGB", toXYZ: m, curves: [3]Curve{c, c, c}}
}

// AdobeRGB1998 returns the Adobe RGB (1998) profile, a common camera space.
func AdobeRGB1998() *Profile {
	m := primariesToXYZ(
		chromaticity{0.64, 0.33},
		chromaticity{0.21, 0.71},
		chromaticity{0.15, 0.06},
		whiteD65,
	)
	c := gammaCurve(563.0 / 256.0)
	return &Profile{Name: "Adobe RGB (1998)", toXYZ: m, curves: [3]Curve{c, c, c}}
}

func (p *Profile) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.Name
}

// primariesToXYZ derives the RGB to XYZ matrix for the given primaries and
// white, then adapts it to D50.
func primariesToXYZ(r, g, b chromaticity, white [3]float64) *mat.Dense {
	p := mat.NewDense(3, 3, []float64{
		r.x / r.y, g.x / g.y, b.x / b.y,
		1, 1, 1,
		(1 - r.x - r.y) / r.y, (1 - g.x - g.y) / g.y, (1 - b.x - b.y) / b.y,
	})

	var inv mat.Dense
	if err := inv.Inverse(p); err != nil {
		panic(fmt.Sprintf("colorspace: singular primaries matrix: %v", err))
	}
	var s mat.VecDense
	s.MulVec(&inv, mat.NewVecDense(3, white[:]))

	var m mat.Dense
	m.Mul(p, mat.NewDiagDense(3, []float64{s.AtVec(0), s.AtVec(1), s.AtVec(2)}))

	var adapted mat.Dense
	adapted.Mul(bradfordAdaptation(white, whiteD50), &m)
	return &adapted
}

// bradfordAdaptation maps XYZ under src white to XYZ under dst white.
func bradfordAdaptation(src, dst [3]float64) *mat.Dense {
	var coneSrc, coneDst mat.VecDense
	coneSrc.MulVec(bradford, mat.NewVecDense(3, src[:]))
	coneDst.MulVec(bradford, mat.NewVecDense(3, dst[:]))

	scale := mat.NewDiagDense(3, []float64{
		coneDst.AtVec(0) / coneSrc.AtVec(0),
		coneDst.AtVec(1) / coneSrc.AtVec(1),
		coneDst.AtVec(2) / coneSrc.AtVec(2),
	})

	var inv mat.Dense
	if err := inv.Inverse(bradford); err != nil {
		panic(fmt.Sprintf("colorspace: singular bradford matrix: %v", err))
	}
	var tmp, out mat.Dense
	tmp.Mul(scale, bradford)
	out.Mul(&inv, &tmp)
	return &out
}
