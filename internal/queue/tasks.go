package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeDeriveImage = "image:derive"

// DeriveImagePayload carries one image's derive request to a worker. The
// request's OutputDir is ignored by workers, which write under their own
// local directory.
type DeriveImagePayload struct {
	JobID       string               `json:"job_id"`
	Request     domain.DeriveRequest `json:"request"`
	WebhookURL  string               `json:"webhook_url,omitempty"`
	RequestedAt time.Time            `json:"requested_at"`
}

func NewDeriveImageTask(payload DeriveImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal derive payload: %w", err)
	}
	return asynq.NewTask(TypeDeriveImage, body), nil
}

func ParseDeriveImagePayload(task *asynq.Task) (DeriveImagePayload, error) {
	var payload DeriveImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeriveImagePayload{}, fmt.Errorf("unmarshal derive payload: %w", err)
	}
	return payload, nil
}
