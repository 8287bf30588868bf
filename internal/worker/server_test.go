package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
	"github.com/dunamismax/imglab/internal/pipeline"
	"github.com/dunamismax/imglab/internal/queue"
	"github.com/dunamismax/imglab/internal/telemetry"
	"github.com/dunamismax/imglab/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
)

func TestHandleDeriveImageLocalFile(t *testing.T) {
	tmp := t.TempDir()
	inputPath := writePNG(t, tmp, "beach.png", 160, 120)

	sender := &captureSender{}
	s := newTestServer(t, filepath.Join(tmp, "work"))
	s.webhookClient = sender

	task := mustTask(t, queue.DeriveImagePayload{
		JobID: "job-1",
		Request: domain.DeriveRequest{
			SourceType:    domain.SourceTypeLocalFile,
			InputPath:     inputPath,
			Derivatives:   []string{domain.DerivativeCompare, domain.DerivativeSquare},
			QualityLevels: []int{70},
			SquareSide:    64,
		},
		WebhookURL:  "http://example.invalid/hook",
		RequestedAt: time.Now().UTC(),
	})

	if err := s.handleDeriveImage(context.Background(), task); err != nil {
		t.Fatalf("handle task: %v", err)
	}

	for _, name := range []string{"beach-70.jpg", "beach-Square.jpg"} {
		if _, err := os.Stat(filepath.Join(tmp, "work", "job-1", name)); err != nil {
			t.Fatalf("expected %s in job dir: %v", name, err)
		}
	}
	if sender.event != webhook.EventDeriveCompleted {
		t.Fatalf("expected completion webhook, got %q", sender.event)
	}
	if sender.payload.JobID != "job-1" || len(sender.payload.Outputs) != 2 || len(sender.payload.Comparisons) != 1 {
		t.Fatalf("unexpected completion payload %+v", sender.payload)
	}
	if sender.payload.Width != 160 || sender.payload.Height != 120 {
		t.Fatalf("expected source dimensions 160x120, got %dx%d", sender.payload.Width, sender.payload.Height)
	}
}

func TestHandleDeriveImageSkipsRetryForBadInput(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "broken.jpg")
	if err := os.WriteFile(inputPath, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	sender := &captureSender{}
	s := newTestServer(t, filepath.Join(tmp, "work"))
	s.webhookClient = sender

	err := s.handleDeriveImage(context.Background(), mustTask(t, queue.DeriveImagePayload{
		JobID: "job-2",
		Request: domain.DeriveRequest{
			InputPath:   inputPath,
			Derivatives: []string{domain.DerivativeWatermark},
		},
		WebhookURL: "http://example.invalid/hook",
	}))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
	if sender.event != webhook.EventDeriveFailed {
		t.Fatalf("expected failure webhook, got %q", sender.event)
	}
	if sender.payload.Error == "" || sender.payload.Status != domain.StatusFailed {
		t.Fatalf("expected failure details, got %+v", sender.payload)
	}
}

func TestHandleDeriveImageWithoutObjectStore(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	err := s.handleDeriveImage(context.Background(), mustTask(t, queue.DeriveImagePayload{
		JobID: "job-3",
		Request: domain.DeriveRequest{
			SourceType:  domain.SourceTypeS3Presigned,
			InputPath:   "uploads/source.jpg",
			Derivatives: []string{domain.DerivativeCompare},
		},
	}))
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, ErrObjectStoreUnavailable) {
		t.Fatalf("expected permanent object store error, got %v", err)
	}
}

func TestHandleDeriveImageRejectsMalformedPayload(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	err := s.handleDeriveImage(context.Background(), asynq.NewTask(queue.TypeDeriveImage, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("stage: %w", pipeline.ErrDecode), true},
		{fmt.Errorf("watermark: %w", pipeline.ErrTextMeasurement), true},
		{fmt.Errorf("emit: %w", errors.New("connection reset")), false},
		{context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		if got := isPermanent(tc.err); got != tc.want {
			t.Fatalf("isPermanent(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestJobDirName(t *testing.T) {
	if got := jobDirName("../../etc"); got != "______etc" {
		t.Fatalf("unexpected sanitized dir %q", got)
	}
	if got := jobDirName(" "); got != "unknown" {
		t.Fatalf("expected unknown for blank id, got %q", got)
	}
}

func newTestServer(t *testing.T, outputDir string) *Server {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	processor, err := pipeline.NewProcessor(logger, pipeline.Options{})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	metrics := telemetry.NewMetrics(false)
	processor.SetRecorder(metrics)

	return &Server{
		logger:         logger,
		sem:            make(chan struct{}, 1),
		localProcessor: processor,
		metrics:        metrics,
		tracer:         otel.Tracer("imglab/worker/test"),
		outputDir:      outputDir,
	}
}

func mustTask(t *testing.T, payload queue.DeriveImagePayload) *asynq.Task {
	t.Helper()

	task, err := queue.NewDeriveImageTask(payload)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}

type captureSender struct {
	event   string
	payload webhook.DeriveEvent
}

func (s *captureSender) SendDeriveEvent(_ context.Context, _ string, e webhook.DeriveEvent) error {
	s.event = e.Name()
	s.payload = e
	return nil
}
