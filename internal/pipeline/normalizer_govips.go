//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	"github.com/dunamismax/imglab/internal/colorspace"
	"github.com/dunamismax/imglab/internal/metadata"
)

// vipsNormalizer lets libvips (and lcms behind it) handle orientation and any
// embedded profile, including LUT-based ones the pure Go path cannot apply.
type vipsNormalizer struct {
	opts     NormalizeOptions
	logger   *log.Logger
	fallback goNormalizer
}

func (n vipsNormalizer) Normalize(ctx context.Context, buf *Buffer) (*Buffer, error) {
	if buf.normalized {
		return buf, nil
	}
	if len(buf.Source) == 0 {
		return n.fallback.Normalize(ctx, buf)
	}

	_, span := tracer.Start(ctx, "pipeline.normalize.vips")
	defer span.End()

	img, err := vips.NewImageFromBuffer(buf.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: vips load %s: %v", ErrDecode, buf.Name, err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("auto rotate: %w", err)
	}

	assume := false
	if img.HasICCProfile() {
		if err := img.TransformICCProfile(vips.SRGBIEC6196621ICCProfilePath); err != nil {
			return nil, fmt.Errorf("transform icc profile: %w", err)
		}
		if err := img.RemoveICCProfile(); err != nil {
			return nil, fmt.Errorf("remove icc profile: %w", err)
		}
	} else if buf.Declared == metadata.ColorSpaceAdobeRGB || !n.opts.flaggedSRGB(buf.Declared) {
		assume = true
	}

	if err := img.RemoveMetadata(); err != nil {
		return nil, fmt.Errorf("strip metadata: %w", err)
	}

	out, err := img.ToImage(vips.NewDefaultExportParams())
	if err != nil {
		return nil, fmt.Errorf("export pixels: %w", err)
	}
	buf.Pixels = imaging.Clone(out)

	if assume {
		source := n.opts.assumedSource()
		if buf.Declared == metadata.ColorSpaceAdobeRGB {
			source = colorspace.AdobeRGB1998()
		}
		conv := colorspace.Assume(source)
		if err := conv.Apply(buf.Pixels); err != nil {
			return nil, fmt.Errorf("colour conversion %s: %w", conv, err)
		}
	}

	buf.Declared = metadata.ColorSpaceSRGB
	buf.Strip()
	buf.normalized = true
	return buf, nil
}
