package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/imglab/internal/colorspace"
	"github.com/dunamismax/imglab/internal/metadata"
	"go.opentelemetry.io/otel/attribute"
)

// Normalizer brings a decoded buffer into the canonical form every derivative
// starts from: upright, sRGB, and free of metadata. It mutates and returns buf.
type Normalizer interface {
	Normalize(ctx context.Context, buf *Buffer) (*Buffer, error)
}

// NormalizeOptions controls the colour-space fallback.
type NormalizeOptions struct {
	// AssumedSource is the space untagged, non-sRGB images are converted
	// from. Defaults to Adobe RGB (1998); the guess can be wrong and the
	// resulting shift is accepted.
	AssumedSource *colorspace.Profile

	// AssumeUnspecified applies the fallback to images that declare no colour
	// space at all. By default those are read as sRGB.
	AssumeUnspecified bool
}

func (o NormalizeOptions) assumedSource() *colorspace.Profile {
	if o.AssumedSource == nil {
		return colorspace.AdobeRGB1998()
	}
	return o.AssumedSource
}

// flaggedSRGB reports whether the buffer can be taken as sRGB without a profile.
func (o NormalizeOptions) flaggedSRGB(declared metadata.ColorSpace) bool {
	switch declared {
	case metadata.ColorSpaceSRGB:
		return true
	case metadata.ColorSpaceUnspecified:
		return !o.AssumeUnspecified
	default:
		return false
	}
}

type goNormalizer struct {
	opts   NormalizeOptions
	logger *log.Logger
}

func (n goNormalizer) Normalize(ctx context.Context, buf *Buffer) (*Buffer, error) {
	if buf.normalized {
		return buf, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	_, span := tracer.Start(ctx, "pipeline.normalize")
	defer span.End()

	orientation := buf.Exif.Orientation()
	buf.Pixels = applyOrientation(buf.Pixels, orientation)
	buf.Exif.ResetOrientation()

	conv, ok := n.conversion(buf)
	if ok {
		if err := conv.Apply(buf.Pixels); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("colour conversion %s: %w", conv, err)
		}
		span.SetAttributes(attribute.String("normalize.conversion", conv.String()))
	}
	buf.ICC = nil
	buf.Declared = metadata.ColorSpaceSRGB

	scrubThumbnail(buf)
	buf.Strip()
	buf.normalized = true

	span.SetAttributes(attribute.Int("normalize.orientation", orientation))
	return buf, nil
}

// conversion picks the declared profile when one is usable, otherwise the
// assumed source when the buffer is not already sRGB.
func (n goNormalizer) conversion(buf *Buffer) (colorspace.Conversion, bool) {
	if len(buf.ICC) > 0 {
		conv, err := colorspace.FromICC(buf.ICC)
		if err != nil {
			n.logger.Printf("icc profile not applied name=%s err=%v", buf.Name, err)
			return colorspace.Conversion{}, false
		}
		return conv, true
	}

	switch {
	case buf.Declared == metadata.ColorSpaceAdobeRGB:
		return colorspace.Conversion{
			Kind:   colorspace.Declared,
			Source: colorspace.AdobeRGB1998(),
			Target: colorspace.SRGB(),
		}, true
	case !n.opts.flaggedSRGB(buf.Declared):
		return colorspace.Assume(n.opts.assumedSource()), true
	default:
		return colorspace.Conversion{}, false
	}
}

// scrubThumbnail removes an embedded EXIF thumbnail. The edit is made on a
// detached copy and only persists once reattached.
func scrubThumbnail(buf *Buffer) {
	if !buf.Exif.HasThumbnail() {
		return
	}
	exif := buf.Exif.Clone()
	exif.RemoveThumbnail()
	buf.SetExif(exif)
}

// applyOrientation turns pixels stored with EXIF orientation o upright.
func applyOrientation(img *image.NRGBA, o int) *image.NRGBA {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
