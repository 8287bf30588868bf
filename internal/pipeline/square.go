package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/imglab/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// Compose builds a side x side image: the whole picture, aspect preserved,
// centred over a blurred fill of itself, with a faint caption in the lower
// right.
func (p *Processor) Compose(ctx context.Context, buf *Buffer, outputDir string, side int) (string, error) {
	if side <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidSide, side)
	}

	ctx, span := tracer.Start(ctx, "pipeline.square")
	defer span.End()
	span.SetAttributes(attribute.Int("square.side", side))
	started := time.Now()

	if _, err := p.normalizer.Normalize(ctx, buf); err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}

	canvas, err := p.composeSquare(buf.Pixels, side)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := ensureDir(outputDir); err != nil {
		return "", err
	}
	path, n, err := writeJPEG(canvas, outputDir, buf.Name+"-Square.jpg", *p.opts.SquareQuality)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	p.recordOutput(domain.DerivativeSquare, n)
	p.recordStage(domain.DerivativeSquare, time.Since(started))
	return path, nil
}

// composeSquare never writes to src; every imaging call returns a new image.
func (p *Processor) composeSquare(src *image.NRGBA, side int) (*image.NRGBA, error) {
	background := blurredFill(src, side)

	fw, fh := fitSize(src.Bounds().Dx(), src.Bounds().Dy(), side)
	foreground := imaging.Resize(src, fw, fh, imaging.Lanczos)
	canvas := imaging.Overlay(background, foreground, image.Pt((side-fw)/2, (side-fh)/2), 1.0)

	face, err := p.fonts.Face(float64(side) * squareCaptionSize / referenceDimension)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	tm, err := measureText(face, p.opts.SquareCaption)
	if err != nil {
		return nil, err
	}
	margin := float64(side) / 40
	x := float64(side) - margin - tm.Width
	baseline := float64(side) - margin - (tm.Height - tm.Ascent)
	drawText(canvas, face, p.opts.SquareCaption, x, baseline, CaptionColor(0), squareCaptionOpacity)

	return canvas, nil
}

// blurredFill covers side x side with src (fill then center crop) and blurs it
// until no detail survives. The blur runs at reduced scale.
func blurredFill(src *image.NRGBA, side int) *image.NRGBA {
	filled := imaging.Fill(src, side, side, imaging.Center, imaging.Lanczos)

	small := max(1, side/8)
	reduced := imaging.Resize(filled, small, small, imaging.Box)
	reduced = imaging.Blur(reduced, float64(side)/24/8)
	return imaging.Resize(reduced, side, side, imaging.Linear)
}

// fitSize scales w x h to fit inside side x side keeping the aspect ratio.
func fitSize(w, h, side int) (int, int) {
	scale := math.Min(float64(side)/float64(w), float64(side)/float64(h))
	fw := int(math.Round(float64(w) * scale))
	fh := int(math.Round(float64(h) * scale))
	return min(side, max(1, fw)), min(side, max(1, fh))
}
