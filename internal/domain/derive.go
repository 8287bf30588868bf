package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	DerivativeCompare   = "compare"
	DerivativeSquare    = "square"
	DerivativeWatermark = "watermark"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"

	DefaultSquareSide       = 1080
	DefaultSquareQuality    = 85
	DefaultWatermarkQuality = 85
	DefaultPartialQuality   = 75
)

// DefaultQualityLevels returns the candidate JPEG quality levels used when a
// caller supplies none. Each call returns a fresh slice.
func DefaultQualityLevels() []int {
	return []int{75, 80, 85, 90, 95, 96, 97, 98, 99, 100}
}

// DeriveRequest describes one image and the derivatives to produce from it.
type DeriveRequest struct {
	SourceType    string   `json:"source_type"`
	InputPath     string   `json:"input_path"`
	OutputDir     string   `json:"output_dir"`
	Derivatives   []string `json:"derivatives"`
	QualityLevels []int    `json:"quality_levels,omitempty"`
	SquareSide    int      `json:"square_side,omitempty"`
	EmitPartial   bool     `json:"emit_partial,omitempty"`
}

func (r DeriveRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType != "" && sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if strings.TrimSpace(r.InputPath) == "" {
		return errors.New("input_path is required")
	}
	if strings.TrimSpace(r.OutputDir) == "" {
		return errors.New("output_dir is required")
	}
	if len(r.Derivatives) == 0 {
		return errors.New("at least one derivative is required")
	}
	for i, d := range r.Derivatives {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case DerivativeCompare, DerivativeSquare, DerivativeWatermark:
		default:
			return fmt.Errorf("derivatives[%d]: unsupported derivative %q", i, d)
		}
	}
	for i, q := range r.QualityLevels {
		if q < 0 || q > 100 {
			return fmt.Errorf("quality_levels[%d]: %d is outside 0-100", i, q)
		}
	}
	if r.SquareSide < 0 {
		return fmt.Errorf("square_side must not be negative, got %d", r.SquareSide)
	}
	return nil
}

// Wants reports whether the request asks for the named derivative.
func (r DeriveRequest) Wants(derivative string) bool {
	for _, d := range r.Derivatives {
		if strings.EqualFold(strings.TrimSpace(d), derivative) {
			return true
		}
	}
	return false
}

// ComparisonResult is one re-encode produced by the quality comparison.
type ComparisonResult struct {
	Quality int    `json:"quality"`
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
}

// FriendlySize renders Bytes as "N bytes" below 1 KiB and "N KB" above it.
func (c ComparisonResult) FriendlySize() string {
	return FriendlySize(c.Bytes)
}

func FriendlySize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	return humanize.Comma(n/1024) + " KB"
}

// WatermarkResult is the terminal artifact of the watermark derivative.
type WatermarkResult struct {
	Path        string  `json:"path"`
	PartialPath string  `json:"partial_path,omitempty"`
	Region      Region  `json:"region"`
	Luminance   float64 `json:"luminance"`
	DarkCaption bool    `json:"dark_caption"`
}
