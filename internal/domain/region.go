package domain

import (
	"image"
	"math"
)

// Region is an axis-aligned pixel rectangle inside an image.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegionFromFloat rounds fractional text-metric geometry half away from zero.
func RegionFromFloat(x, y, w, h float64) Region {
	left := math.Round(x)
	top := math.Round(y)
	return Region{
		X:      int(left),
		Y:      int(top),
		Width:  int(math.Round(x+w) - left),
		Height: int(math.Round(y+h) - top),
	}
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// ClipTo intersects r with bounds. The result may be empty.
func (r Region) ClipTo(bounds image.Rectangle) Region {
	clipped := r.Rect().Intersect(bounds)
	return Region{
		X:      clipped.Min.X,
		Y:      clipped.Min.Y,
		Width:  clipped.Dx(),
		Height: clipped.Dy(),
	}
}

func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
