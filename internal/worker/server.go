package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/imglab/internal/config"
	"github.com/dunamismax/imglab/internal/domain"
	"github.com/dunamismax/imglab/internal/pipeline"
	"github.com/dunamismax/imglab/internal/queue"
	"github.com/dunamismax/imglab/internal/storage"
	"github.com/dunamismax/imglab/internal/telemetry"
	"github.com/dunamismax/imglab/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrObjectStoreUnavailable = errors.New("object storage is not configured")

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	storage         *storage.Client
	metrics         *telemetry.Metrics
	tracer          trace.Tracer
	outputDir       string
}

const downloadLinkExpiry = 24 * time.Hour

type webhookSender interface {
	SendDeriveEvent(ctx context.Context, endpoint string, e webhook.DeriveEvent) error
}

// NewServer wires the asynq consumer. storageClient may be nil, in which case
// object-store jobs are rejected without retry.
func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	opts pipeline.Options,
	storageClient *storage.Client,
	webhookClient *webhook.Client,
	metrics *telemetry.Metrics,
) (*Server, error) {
	if metrics == nil {
		metrics = telemetry.NewMetrics(true)
	}

	localProcessor, err := pipeline.NewProcessor(logger, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline processor: %w", err)
	}
	localProcessor.SetRecorder(metrics)

	var objectProcessor *pipeline.Processor
	if storageClient != nil {
		objectProcessor, err = pipeline.NewProcessor(logger, opts)
		if err != nil {
			return nil, fmt.Errorf("initialize object-store processor: %w", err)
		}
		objectProcessor.SetStages(
			pipeline.ObjectStoreFetcher{Storage: storageClient},
			pipeline.ObjectStoreEmitter{Storage: storageClient, OutputPrefix: workerCfg.OutputPrefix},
		)
		objectProcessor.SetRecorder(metrics)
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		storage:         storageClient,
		metrics:         metrics,
		tracer:          otel.Tracer("imglab/worker"),
		outputDir:       workerCfg.LocalOutputDir,
	}
	if webhookClient != nil {
		s.webhookClient = webhookClient
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeDeriveImage, s.handleDeriveImage)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleDeriveImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.StatusFailed

	payload, err := queue.ParseDeriveImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	req := payload.Request
	req.OutputDir = filepath.Join(s.outputDir, jobDirName(payload.JobID))

	ctx, span := s.tracer.Start(ctx, "worker.derive_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_type", req.SourceType),
		attribute.StringSlice("job.derivatives", req.Derivatives),
	)
	defer span.End()

	var report pipeline.Report
	defer func() {
		s.metrics.ObserveImage(req.SourceType, outcome, time.Since(startedAt), report.Usage(time.Since(startedAt)))
	}()

	s.sem <- struct{}{}
	done := s.metrics.TrackActive()
	defer func() {
		<-s.sem
		done()
	}()

	s.logger.Printf(
		"Working... job_id=%s source_type=%s derivatives=%s input=%s",
		payload.JobID,
		req.SourceType,
		strings.Join(req.Derivatives, ","),
		req.InputPath,
	)

	report, err = s.process(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		event := newDeriveEvent(payload, req, domain.StatusFailed)
		event.Error = err.Error()
		s.dispatchWebhook(ctx, payload, event)
		if isPermanent(err) {
			return fmt.Errorf("run pipeline: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("run pipeline: %w", err)
	}

	s.logger.Printf("Processed job_id=%s outputs=%d published=%d", payload.JobID, len(report.Outputs()), len(report.Published))
	if len(report.Published) > 0 {
		// Published outputs no longer need their local copies.
		if err := os.RemoveAll(req.OutputDir); err != nil {
			s.logger.Printf("local output cleanup failed job_id=%s err=%v", payload.JobID, err)
		}
	}

	event := newDeriveEvent(payload, req, domain.StatusSucceeded)
	event.Width, event.Height = report.Width, report.Height
	event.Outputs = report.Outputs()
	event.OutputBytes = report.OutputBytes
	event.Comparisons = report.Comparisons
	event.Watermark = report.Watermark
	event.Downloads = s.downloadLinks(ctx, report.Published)
	if err := s.dispatchWebhook(ctx, payload, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.StatusSucceeded
	span.SetStatus(codes.Ok, "processed")
	return nil
}

func (s *Server) process(ctx context.Context, req domain.DeriveRequest) (pipeline.Report, error) {
	if err := req.Validate(); err != nil {
		return pipeline.Report{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	switch strings.ToLower(strings.TrimSpace(req.SourceType)) {
	case "", domain.SourceTypeLocalFile:
		return s.localProcessor.Process(ctx, req)
	default:
		if s.objectProcessor == nil {
			return pipeline.Report{}, ErrObjectStoreUnavailable
		}
		return s.objectProcessor.Process(ctx, req)
	}
}

// downloadLinks presigns every published object. Keys that cannot be signed
// are left out.
func (s *Server) downloadLinks(ctx context.Context, keys []string) map[string]string {
	if s.storage == nil || len(keys) == 0 {
		return nil
	}
	links := make(map[string]string, len(keys))
	for _, key := range keys {
		link, err := s.storage.PresignedGetURL(ctx, key, downloadLinkExpiry)
		if err != nil {
			s.logger.Printf("presign download failed key=%s err=%v", key, err)
			continue
		}
		links[key] = link
	}
	return links
}

func newDeriveEvent(payload queue.DeriveImagePayload, req domain.DeriveRequest, status string) webhook.DeriveEvent {
	return webhook.DeriveEvent{
		JobID:       payload.JobID,
		Status:      status,
		SourceType:  req.SourceType,
		InputPath:   req.InputPath,
		RequestedAt: payload.RequestedAt,
		FinishedAt:  time.Now().UTC(),
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.DeriveImagePayload, event webhook.DeriveEvent) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.SendDeriveEvent(ctx, payload.WebhookURL, event); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event.Name(), err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

var errInvalidRequest = errors.New("invalid derive request")

// isPermanent reports whether a retry could possibly change the outcome.
// Input and measurement failures are deterministic.
func isPermanent(err error) bool {
	for _, target := range []error{
		errInvalidRequest,
		ErrObjectStoreUnavailable,
		pipeline.ErrUnsupportedSourceType,
		pipeline.ErrDecode,
		pipeline.ErrTextMeasurement,
		pipeline.ErrInvalidQuality,
		pipeline.ErrInvalidSide,
		pipeline.ErrFontUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func jobDirName(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, jobID)
}
