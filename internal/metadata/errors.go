package metadata

import "errors"

var (
	// ErrInvalidTIFF is returned when an EXIF payload is not a TIFF structure.
	ErrInvalidTIFF = errors.New("metadata: invalid tiff structure")

	// ErrTruncated is returned when a container segment runs past the end of the data.
	ErrTruncated = errors.New("metadata: truncated segment")
)
