package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("imglab/pipeline")

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

// Fetcher loads the encoded source image a request names.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.DeriveRequest) ([]byte, error)
}

// Emitter publishes a derivative already written to the local filesystem and
// returns where it ended up.
type Emitter interface {
	Emit(ctx context.Context, req domain.DeriveRequest, localPath string) (string, error)
}

// Recorder receives per-stage timings and output sizes.
type Recorder interface {
	ObserveStage(derivative string, elapsed time.Duration)
	ObserveOutput(derivative string, bytes int64)
}

// Report lists everything produced for one input image.
type Report struct {
	Input       string                    `json:"input"`
	SourceBytes int                       `json:"source_bytes"`
	Width       int                       `json:"width"`
	Height      int                       `json:"height"`
	Comparisons []domain.ComparisonResult `json:"comparisons,omitempty"`
	SquarePath  string                    `json:"square_path,omitempty"`
	Watermark   *domain.WatermarkResult   `json:"watermark,omitempty"`
	OutputBytes int64                     `json:"output_bytes"`
	Published   []string                  `json:"published,omitempty"`
}

// Usage summarises the report for accounting.
func (r Report) Usage(elapsed time.Duration) domain.Usage {
	return domain.Usage{
		Input:           r.Input,
		PixelsProcessed: int64(r.Width) * int64(r.Height),
		SourceBytes:     int64(r.SourceBytes),
		OutputBytes:     r.OutputBytes,
		Outputs:         len(r.Outputs()),
		ComputeTime:     elapsed,
	}
}

// Outputs returns the local paths of every written file, in production order.
func (r Report) Outputs() []string {
	var out []string
	for _, c := range r.Comparisons {
		out = append(out, c.Path)
	}
	if r.SquarePath != "" {
		out = append(out, r.SquarePath)
	}
	if r.Watermark != nil {
		out = append(out, r.Watermark.Path)
		if r.Watermark.PartialPath != "" {
			out = append(out, r.Watermark.PartialPath)
		}
	}
	return out
}

type Processor struct {
	logger     *log.Logger
	opts       Options
	normalizer Normalizer
	fonts      *FontSource
	fetcher    Fetcher
	emitter    Emitter
	recorder   Recorder
}

// NewProcessor builds a processor reading from and writing to the local
// filesystem. The caption font is loaded eagerly so a missing font fails here.
func NewProcessor(logger *log.Logger, opts Options) (*Processor, error) {
	if logger == nil {
		logger = log.New(os.Stdout, "[pipeline] ", log.LstdFlags|log.Lmsgprefix)
	}
	opts = opts.withDefaults()

	fonts, err := LoadFont(opts.FontPath)
	if err != nil {
		return nil, fmt.Errorf("load caption font: %w", err)
	}
	normalizer, err := newNormalizer(opts.Normalize, logger)
	if err != nil {
		return nil, fmt.Errorf("build normalizer: %w", err)
	}

	return &Processor{
		logger:     logger,
		opts:       opts,
		normalizer: normalizer,
		fonts:      fonts,
		fetcher:    LocalFileFetcher{},
	}, nil
}

func (p *Processor) SetRecorder(r Recorder) {
	p.recorder = r
}

// SetStages swaps the fetch and publish ends of the pipeline. A nil emitter
// keeps outputs local only.
func (p *Processor) SetStages(fetcher Fetcher, emitter Emitter) {
	if fetcher != nil {
		p.fetcher = fetcher
	}
	p.emitter = emitter
}

// Process decodes the request's input, normalizes it once and produces each
// requested derivative from its own copy. The first failing derivative aborts
// the image.
func (p *Processor) Process(ctx context.Context, req domain.DeriveRequest) (Report, error) {
	if err := req.Validate(); err != nil {
		return Report{}, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("process.input", req.InputPath),
		attribute.StringSlice("process.derivatives", req.Derivatives),
	)

	data, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		span.RecordError(err)
		return Report{}, fmt.Errorf("fetch stage: %w", err)
	}

	buf, err := DecodeBytes(stem(req.InputPath), data)
	if err != nil {
		span.RecordError(err)
		return Report{}, err
	}
	if _, err := p.normalizer.Normalize(ctx, buf); err != nil {
		span.RecordError(err)
		return Report{}, fmt.Errorf("normalize stage: %w", err)
	}

	report := Report{
		Input:       req.InputPath,
		SourceBytes: len(data),
		Width:       buf.Width(),
		Height:      buf.Height(),
	}

	if req.Wants(domain.DerivativeCompare) {
		report.Comparisons, err = p.Compare(ctx, buf.Clone(), req.OutputDir, req.QualityLevels)
		if err != nil {
			return Report{}, fmt.Errorf("compare stage: %w", err)
		}
	}

	if req.Wants(domain.DerivativeSquare) {
		side := req.SquareSide
		if side == 0 {
			side = p.opts.SquareSide
		}
		report.SquarePath, err = p.Compose(ctx, buf.Clone(), req.OutputDir, side)
		if err != nil {
			return Report{}, fmt.Errorf("square stage: %w", err)
		}
	}

	if req.Wants(domain.DerivativeWatermark) {
		result, err := p.Watermark(ctx, buf.Clone(), req.OutputDir, req.EmitPartial)
		if err != nil {
			return Report{}, fmt.Errorf("watermark stage: %w", err)
		}
		report.Watermark = &result
	}

	for _, local := range report.Outputs() {
		if info, err := os.Stat(local); err == nil {
			report.OutputBytes += info.Size()
		}
	}

	if p.emitter != nil {
		for _, local := range report.Outputs() {
			published, err := p.emitter.Emit(ctx, req, local)
			if err != nil {
				return Report{}, fmt.Errorf("emit stage path=%s: %w", local, err)
			}
			report.Published = append(report.Published, published)
		}
	}

	p.logger.Printf("image processed input=%s size=%dx%d outputs=%d", req.InputPath, report.Width, report.Height, len(report.Outputs()))
	return report, nil
}

func (p *Processor) recordStage(derivative string, elapsed time.Duration) {
	if p.recorder != nil {
		p.recorder.ObserveStage(derivative, elapsed)
	}
}

func (p *Processor) recordOutput(derivative string, n int64) {
	if p.recorder != nil {
		p.recorder.ObserveOutput(derivative, n)
	}
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req domain.DeriveRequest) ([]byte, error) {
	sourceType := strings.TrimSpace(req.SourceType)
	if sourceType != "" && !strings.EqualFold(sourceType, domain.SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read input file %s: %v", ErrDecode, req.InputPath, err)
	}
	return data, nil
}
