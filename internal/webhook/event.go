package webhook

import (
	"context"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
)

// DeriveEvent is the body of a derive notification. Failed events carry Error;
// completed events carry the outputs and, for published jobs, download links
// keyed by object key.
type DeriveEvent struct {
	JobID       string                    `json:"job_id"`
	Status      string                    `json:"status"`
	SourceType  string                    `json:"source_type"`
	InputPath   string                    `json:"input_path"`
	RequestedAt time.Time                 `json:"requested_at"`
	FinishedAt  time.Time                 `json:"finished_at"`
	Width       int                       `json:"width,omitempty"`
	Height      int                       `json:"height,omitempty"`
	Outputs     []string                  `json:"outputs,omitempty"`
	OutputBytes int64                     `json:"output_bytes,omitempty"`
	Comparisons []domain.ComparisonResult `json:"comparisons,omitempty"`
	Watermark   *domain.WatermarkResult   `json:"watermark,omitempty"`
	Downloads   map[string]string         `json:"downloads,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// Name is the event header value for e.
func (e DeriveEvent) Name() string {
	if e.Status == domain.StatusFailed {
		return EventDeriveFailed
	}
	return EventDeriveCompleted
}

func (c *Client) SendDeriveEvent(ctx context.Context, endpoint string, e DeriveEvent) error {
	return c.Send(ctx, endpoint, e.Name(), e)
}
