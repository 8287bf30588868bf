package domain

import "time"

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Usage summarises the work spent on one image.
type Usage struct {
	Input           string
	PixelsProcessed int64
	SourceBytes     int64
	OutputBytes     int64
	Outputs         int
	ComputeTime     time.Duration
}

// BytesSaved is how much smaller the outputs are than the source, never
// negative.
func (u Usage) BytesSaved() int64 {
	return max(0, u.SourceBytes-u.OutputBytes)
}
