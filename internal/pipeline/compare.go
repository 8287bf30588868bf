package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

// Compare re-encodes the normalized buffer as JPEG at every level, in order,
// and reports each file's size. The buffer pixels are shared by all levels so
// the outputs differ only by quality. Any failure discards the whole set.
func (p *Processor) Compare(ctx context.Context, buf *Buffer, outputDir string, levels []int) ([]domain.ComparisonResult, error) {
	if len(levels) == 0 {
		levels = p.opts.QualityLevels
	}
	for _, q := range levels {
		if q < 0 || q > 100 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidQuality, q)
		}
	}

	ctx, span := tracer.Start(ctx, "pipeline.compare")
	defer span.End()
	span.SetAttributes(attribute.IntSlice("compare.levels", levels))
	started := time.Now()

	if _, err := p.normalizer.Normalize(ctx, buf); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if err := ensureDir(outputDir); err != nil {
		return nil, err
	}

	results := make([]domain.ComparisonResult, 0, len(levels))
	for _, q := range levels {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		path, n, err := writeJPEG(buf.Pixels, outputDir, fmt.Sprintf("%s-%d.jpg", buf.Name, q), q)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("quality %d: %w", q, err)
		}
		results = append(results, domain.ComparisonResult{Quality: q, Path: path, Bytes: n})
		p.recordOutput(domain.DerivativeCompare, n)
	}

	p.recordStage(domain.DerivativeCompare, time.Since(started))
	return results, nil
}
