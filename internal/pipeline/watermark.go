package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/imglab/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// Watermark enhances the buffer, stamps the caption at a quarter of the width
// and four fifths of the height, and writes the result. With emitPartial the
// captioned region is also written on its own. The work runs on a thread with
// lowered scheduling priority.
func (p *Processor) Watermark(ctx context.Context, buf *Buffer, outputDir string, emitPartial bool) (domain.WatermarkResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.watermark")
	defer span.End()
	started := time.Now()

	var result domain.WatermarkResult
	err := runAtLowPriority(p.logger, func() error {
		var err error
		result, err = p.watermark(ctx, buf, outputDir, emitPartial)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return domain.WatermarkResult{}, err
	}

	span.SetAttributes(
		attribute.Float64("watermark.luminance", result.Luminance),
		attribute.Bool("watermark.dark_caption", result.DarkCaption),
	)
	p.recordStage(domain.DerivativeWatermark, time.Since(started))
	return result, nil
}

func (p *Processor) watermark(ctx context.Context, buf *Buffer, outputDir string, emitPartial bool) (domain.WatermarkResult, error) {
	if _, err := p.normalizer.Normalize(ctx, buf); err != nil {
		return domain.WatermarkResult{}, fmt.Errorf("normalize: %w", err)
	}

	img := enhance(buf.Pixels)
	bounds := img.Bounds()

	size := p.opts.BaseFontSize * float64(max(bounds.Dx(), bounds.Dy())) / referenceDimension
	face, err := p.fonts.Face(size)
	if err != nil {
		return domain.WatermarkResult{}, err
	}
	defer face.Close()

	tm, err := measureText(face, p.opts.Caption)
	if err != nil {
		return domain.WatermarkResult{}, err
	}
	left, top := captionOrigin(bounds.Dx(), bounds.Dy(), tm)
	region := domain.RegionFromFloat(left, top, tm.Width, tm.Height).ClipTo(bounds)
	if region.Empty() {
		return domain.WatermarkResult{}, fmt.Errorf("%w: caption falls outside %dx%d", ErrTextMeasurement, bounds.Dx(), bounds.Dy())
	}

	luminance, err := SampleLuminance(img, region)
	if err != nil {
		return domain.WatermarkResult{}, fmt.Errorf("%w: %v", ErrTextMeasurement, err)
	}
	drawText(img, face, p.opts.Caption, left, top+tm.Ascent, CaptionColor(luminance), captionOpacity)

	if err := ensureDir(outputDir); err != nil {
		return domain.WatermarkResult{}, err
	}
	path, n, err := writeJPEG(img, outputDir, buf.Name+"-Watermarked.jpg", *p.opts.WatermarkQuality)
	if err != nil {
		return domain.WatermarkResult{}, err
	}
	p.recordOutput(domain.DerivativeWatermark, n)

	result := domain.WatermarkResult{
		Path:        path,
		Region:      region,
		Luminance:   luminance,
		DarkCaption: luminance >= 0.5,
	}
	if !emitPartial {
		return result, nil
	}

	partial := imaging.Crop(img, region.Rect())
	result.PartialPath, n, err = writeJPEG(partial, outputDir, buf.Name+"-Partial.jpg", *p.opts.PartialQuality)
	if err != nil {
		return domain.WatermarkResult{}, err
	}
	p.recordOutput(domain.DerivativeWatermark, n)
	return result, nil
}

// captionOrigin centres a caption of the measured size on (w/4, 4h/5) and
// returns its top-left corner.
func captionOrigin(w, h int, tm textMetrics) (float64, float64) {
	cx := float64(w) / 4
	cy := float64(h) * 4 / 5
	return cx - tm.Width/2, cy - tm.Height/2
}
