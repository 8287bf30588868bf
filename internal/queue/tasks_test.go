package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
)

func TestDeriveImageTaskRoundTrip(t *testing.T) {
	payload := DeriveImagePayload{
		JobID: "job-123",
		Request: domain.DeriveRequest{
			SourceType:    domain.SourceTypeS3Presigned,
			InputPath:     "uploads/job-123/source.jpg",
			OutputDir:     "ignored",
			Derivatives:   []string{domain.DerivativeCompare, domain.DerivativeWatermark},
			QualityLevels: []int{80, 90},
			EmitPartial:   true,
		},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewDeriveImageTask(payload)
	if err != nil {
		t.Fatalf("NewDeriveImageTask returned error: %v", err)
	}
	if task.Type() != TypeDeriveImage {
		t.Fatalf("expected task type %s, got %s", TypeDeriveImage, task.Type())
	}

	parsed, err := ParseDeriveImagePayload(task)
	if err != nil {
		t.Fatalf("ParseDeriveImagePayload returned error: %v", err)
	}

	if parsed.JobID != payload.JobID {
		t.Fatalf("expected job_id %q, got %q", payload.JobID, parsed.JobID)
	}
	if len(parsed.Request.Derivatives) != 2 || !parsed.Request.EmitPartial {
		t.Fatalf("expected request to survive the round trip, got %+v", parsed.Request)
	}
	if len(parsed.Request.QualityLevels) != 2 || parsed.Request.QualityLevels[1] != 90 {
		t.Fatalf("unexpected quality levels %v", parsed.Request.QualityLevels)
	}
}
