package pipeline

import (
	"github.com/dunamismax/imglab/internal/config"
	"github.com/dunamismax/imglab/internal/domain"
)

const (
	defaultCaption       = "imgLab"
	defaultBaseFontSize  = 48
	referenceDimension   = 1080
	captionOpacity       = 0.5
	squareCaptionOpacity = 0.3
	squareCaptionSize    = 24
)

// Options are the tunables of the derivative stages. Zero values and nil
// qualities fall back to the defaults; 0 is a valid JPEG quality, so the
// output qualities are pointers.
type Options struct {
	QualityLevels    []int
	SquareSide       int
	SquareQuality    *int
	WatermarkQuality *int
	PartialQuality   *int

	Caption       string
	SquareCaption string
	BaseFontSize  float64
	FontPath      string

	Normalize NormalizeOptions
}

// Quality returns a pointer to q for the quality fields of Options.
func Quality(q int) *int {
	return &q
}

func (o Options) withDefaults() Options {
	if len(o.QualityLevels) == 0 {
		o.QualityLevels = domain.DefaultQualityLevels()
	}
	if o.SquareSide <= 0 {
		o.SquareSide = domain.DefaultSquareSide
	}
	if o.SquareQuality == nil {
		o.SquareQuality = Quality(domain.DefaultSquareQuality)
	}
	if o.WatermarkQuality == nil {
		o.WatermarkQuality = Quality(domain.DefaultWatermarkQuality)
	}
	if o.PartialQuality == nil {
		o.PartialQuality = Quality(domain.DefaultPartialQuality)
	}
	if o.Caption == "" {
		o.Caption = defaultCaption
	}
	if o.SquareCaption == "" {
		o.SquareCaption = o.Caption
	}
	if o.BaseFontSize <= 0 {
		o.BaseFontSize = defaultBaseFontSize
	}
	return o
}

// OptionsFromConfig maps the environment configuration onto Options.
func OptionsFromConfig(cfg config.DeriveConfig) Options {
	return Options{
		QualityLevels:    cfg.QualityLevels,
		SquareSide:       cfg.SquareSide,
		SquareQuality:    Quality(cfg.SquareQuality),
		WatermarkQuality: Quality(cfg.WatermarkQuality),
		PartialQuality:   Quality(cfg.PartialQuality),
		Caption:          cfg.Caption,
		SquareCaption:    cfg.SquareCaption,
		FontPath:         cfg.FontPath,
		Normalize: NormalizeOptions{
			AssumeUnspecified: cfg.AssumeUnspecified,
		},
	}.withDefaults()
}
