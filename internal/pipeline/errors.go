package pipeline

import "errors"

var (
	// Input errors.
	ErrDecode = errors.New("decode source image")

	// Environment errors.
	ErrOutputDir       = errors.New("create output directory")
	ErrEncode          = errors.New("encode output image")
	ErrFontUnavailable = errors.New("caption font unavailable")

	// Measurement errors.
	ErrTextMeasurement = errors.New("caption text could not be measured")

	ErrInvalidQuality = errors.New("jpeg quality must be within 0-100")
	ErrInvalidSide    = errors.New("square side must be positive")
	ErrEmptyRegion    = errors.New("sample region is empty")
)
