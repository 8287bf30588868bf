// Package metadata reads the ancillary data carried next to the pixels of an
// encoded image: ICC profiles, EXIF, XMP and comments.
package metadata

import (
	"bytes"
)

// ColorSpace is the colour space an encoded image declares for itself.
type ColorSpace int

const (
	ColorSpaceUnspecified ColorSpace = iota
	ColorSpaceSRGB
	ColorSpaceAdobeRGB
	ColorSpaceUncalibrated
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceSRGB:
		return "sRGB"
	case ColorSpaceAdobeRGB:
		return "AdobeRGB"
	case ColorSpaceUncalibrated:
		return "Uncalibrated"
	default:
		return "Unspecified"
	}
}

// Container holds the metadata found in an encoded image.
type Container struct {
	Format    string
	ICC       []byte
	Exif      *Exif
	XMP       []byte
	Comments  []string
	SRGBChunk bool
}

// Extract detects the container format and collects its metadata. Formats
// without a metadata reader yield an empty container, not an error.
func Extract(data []byte) (Container, error) {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return extractJPEG(data)
	case bytes.HasPrefix(data, pngSignature):
		return extractPNG(data)
	default:
		return Container{}, nil
	}
}

// ColorSpace reports the declared colour space. An embedded ICC profile takes
// precedence and is handled by the caller; this only looks at tags.
func (c Container) ColorSpace() ColorSpace {
	if c.SRGBChunk {
		return ColorSpaceSRGB
	}
	if c.Exif != nil {
		return c.Exif.ColorSpace()
	}
	return ColorSpaceUnspecified
}
