package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dunamismax/imglab/internal/config"
	"github.com/dunamismax/imglab/internal/domain"
	"github.com/dunamismax/imglab/internal/id"
	"github.com/dunamismax/imglab/internal/pipeline"
	"github.com/dunamismax/imglab/internal/queue"
	"github.com/dunamismax/imglab/internal/storage"
	"github.com/dunamismax/imglab/internal/telemetry"
)

type cliOptions struct {
	compare   bool
	square    bool
	watermark bool
	partial   bool
	qualities string
	side      int
	parent    string
	enqueue   bool
	webhook   string
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[imglab] ", log.LstdFlags|log.Lmsgprefix)

	var opts cliOptions
	flag.BoolVar(&opts.compare, "compare", false, "write JPEG re-encodes at every quality level")
	flag.BoolVar(&opts.square, "square", false, "write a blurred-background square composition")
	flag.BoolVar(&opts.watermark, "watermark", false, "write a watermarked copy")
	flag.BoolVar(&opts.partial, "partial", false, "with -watermark, also write the captioned region")
	flag.StringVar(&opts.qualities, "qualities", "", "comma separated JPEG quality levels for -compare")
	flag.IntVar(&opts.side, "side", cfg.Derive.SquareSide, "square side in pixels")
	flag.StringVar(&opts.parent, "out", cfg.Derive.OutputParent, "parent directory for the run's output directory")
	flag.BoolVar(&opts.enqueue, "enqueue", false, "upload inputs and queue them for the worker instead of processing locally")
	flag.StringVar(&opts.webhook, "webhook", "", "with -enqueue, URL notified when each job finishes")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [-compare] [-square] [-watermark [-partial]] [-qualities 75,85] image...\n", filepath.Base(os.Args[0]))
		return 2
	}

	req, err := opts.request(cfg.Derive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "imglab: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.NewTraceConfig("imglab", cfg.Telemetry), logger)
	if err != nil {
		logger.Printf("tracing setup failed: %v", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	metrics := telemetry.NewMetrics(false)
	defer func() {
		if cfg.Telemetry.MetricsFile == "" {
			return
		}
		if err := metrics.WriteTextfile(cfg.Telemetry.MetricsFile); err != nil {
			logger.Printf("metrics write failed: %v", err)
		}
	}()

	if opts.enqueue {
		return enqueue(ctx, logger, cfg, metrics, req, opts.webhook, inputs)
	}
	return processLocal(ctx, logger, cfg, metrics, req, opts.parent, inputs)
}

// request turns the flags into a template request. With no derivative flag
// every derivative is produced.
func (o cliOptions) request(cfg config.DeriveConfig) (domain.DeriveRequest, error) {
	req := domain.DeriveRequest{
		SourceType:  domain.SourceTypeLocalFile,
		SquareSide:  o.side,
		EmitPartial: o.partial,
	}
	if o.compare {
		req.Derivatives = append(req.Derivatives, domain.DerivativeCompare)
	}
	if o.square {
		req.Derivatives = append(req.Derivatives, domain.DerivativeSquare)
	}
	if o.watermark || o.partial {
		req.Derivatives = append(req.Derivatives, domain.DerivativeWatermark)
	}
	if len(req.Derivatives) == 0 {
		req.Derivatives = []string{domain.DerivativeCompare, domain.DerivativeSquare, domain.DerivativeWatermark}
	}

	req.QualityLevels = cfg.QualityLevels
	if strings.TrimSpace(o.qualities) != "" {
		levels, err := parseLevels(o.qualities)
		if err != nil {
			return domain.DeriveRequest{}, err
		}
		req.QualityLevels = levels
	}
	if o.side <= 0 {
		return domain.DeriveRequest{}, fmt.Errorf("-side must be positive, got %d", o.side)
	}
	return req, nil
}

func parseLevels(value string) ([]int, error) {
	var levels []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		q, err := strconv.Atoi(part)
		if err != nil || q < 0 || q > 100 {
			return nil, fmt.Errorf("invalid quality level %q", part)
		}
		levels = append(levels, q)
	}
	if len(levels) == 0 {
		return nil, errors.New("no quality levels given")
	}
	return levels, nil
}

func processLocal(ctx context.Context, logger *log.Logger, cfg config.Config, metrics *telemetry.Metrics, template domain.DeriveRequest, parent string, inputs []string) int {
	if err := pipeline.Startup(); err != nil {
		logger.Printf("pipeline startup failed: %v", err)
		return 1
	}
	defer pipeline.Shutdown()

	processor, err := pipeline.NewProcessor(logger, pipeline.OptionsFromConfig(cfg.Derive))
	if err != nil {
		logger.Printf("pipeline init failed: %v", err)
		return 1
	}
	processor.SetRecorder(metrics)

	outputDir, err := createRunDir(parent, time.Now())
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}
	logger.Printf("writing outputs dir=%s", outputDir)

	failed := 0
	for _, input := range inputs {
		if ctx.Err() != nil {
			logger.Printf("interrupted, skipping remaining images")
			return 130
		}

		req := template
		req.InputPath = input
		req.OutputDir = outputDir

		started := time.Now()
		done := metrics.TrackActive()
		report, err := processor.Process(ctx, req)
		done()
		if err != nil {
			// One bad image does not stop the batch.
			failed++
			metrics.ObserveImage(req.SourceType, domain.StatusFailed, time.Since(started), domain.Usage{})
			logger.Printf("image failed input=%s err=%v", input, err)
			continue
		}
		metrics.ObserveImage(req.SourceType, domain.StatusSucceeded, time.Since(started), report.Usage(time.Since(started)))
		printReport(os.Stdout, report)
	}

	if failed > 0 {
		logger.Printf("finished with failures failed=%d total=%d", failed, len(inputs))
		return 1
	}
	return 0
}

func printReport(w io.Writer, report pipeline.Report) {
	fmt.Fprintf(w, "\n%s (%dx%d, %s)\n", filepath.Base(report.Input), report.Width, report.Height, domain.FriendlySize(int64(report.SourceBytes)))

	if len(report.Comparisons) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "quality\tsize\t")
		for _, c := range report.Comparisons {
			fmt.Fprintf(tw, "%d\t%s\t\n", c.Quality, c.FriendlySize())
		}
		tw.Flush()
	}
	if report.SquarePath != "" {
		fmt.Fprintf(w, "square     %s\n", report.SquarePath)
	}
	if wm := report.Watermark; wm != nil {
		fmt.Fprintf(w, "watermark  %s (luminance %.2f)\n", wm.Path, wm.Luminance)
		if wm.PartialPath != "" {
			fmt.Fprintf(w, "partial    %s\n", wm.PartialPath)
		}
	}
}

// enqueue uploads each input to object storage and queues a derive job for
// it. Inputs already present under the same key are not uploaded again.
func enqueue(ctx context.Context, logger *log.Logger, cfg config.Config, metrics *telemetry.Metrics, template domain.DeriveRequest, webhookURL string, inputs []string) int {
	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Printf("storage init failed: %v", err)
		return 1
	}
	if err := storageClient.EnsureBucket(ctx); err != nil {
		logger.Printf("storage bucket check failed: %v", err)
		return 1
	}

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	failed := 0
	for _, input := range inputs {
		if err := enqueueOne(ctx, logger, storageClient, queueClient, template, webhookURL, input); err != nil {
			failed++
			logger.Printf("enqueue failed input=%s err=%v", input, err)
			continue
		}
		metrics.ObserveEnqueued(queueClient.Queue())
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func enqueueOne(ctx context.Context, logger *log.Logger, storageClient *storage.Client, queueClient *queue.Client, template domain.DeriveRequest, webhookURL, input string) error {
	jobID, err := id.New()
	if err != nil {
		return err
	}

	objectKey := "uploads/" + jobID + "/" + filepath.Base(input)
	exists, err := storageClient.ObjectExists(ctx, objectKey)
	if err != nil {
		return err
	}
	if !exists {
		if err := storageClient.UploadFile(ctx, objectKey, input, "application/octet-stream"); err != nil {
			return err
		}
	}

	req := template
	req.SourceType = domain.SourceTypeS3Presigned
	req.InputPath = objectKey
	req.OutputDir = jobID

	info, err := queueClient.EnqueueDeriveImage(ctx, queue.DeriveImagePayload{
		JobID:       jobID,
		Request:     req,
		WebhookURL:  webhookURL,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	logger.Printf("queued job_id=%s task_id=%s queue=%s object_key=%s", jobID, info.ID, info.Queue, objectKey)
	return nil
}
