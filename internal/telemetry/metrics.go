package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a private Prometheus registry for derivative generation. It
// satisfies pipeline.Recorder.
type Metrics struct {
	registry             *prometheus.Registry
	imagesTotal          *prometheus.CounterVec
	imageDuration        *prometheus.HistogramVec
	activeImages         prometheus.Gauge
	stageDuration        *prometheus.HistogramVec
	outputsTotal         *prometheus.CounterVec
	outputBytes          *prometheus.HistogramVec
	pixelsProcessedTotal prometheus.Counter
	bytesSavedTotal      prometheus.Counter
	computeSecondsTotal  prometheus.Counter
	enqueuedTotal        *prometheus.CounterVec
}

// NewMetrics builds the registry. Long-running processes pass withRuntime to
// also export Go and process collectors; a one-shot CLI run does not.
func NewMetrics(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		imagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imglab_images_total",
			Help: "Total images processed by source type and final status.",
		}, []string{"source_type", "status"}),
		imageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imglab_image_duration_seconds",
			Help:    "Total processing duration for each image.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		activeImages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imglab_active_images",
			Help: "Current number of images being processed.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imglab_stage_duration_seconds",
			Help:    "Duration of each derivative stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"derivative"}),
		outputsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imglab_outputs_total",
			Help: "Total files written by derivative.",
		}, []string{"derivative"}),
		outputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imglab_output_bytes",
			Help:    "Size of written files by derivative.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}, []string{"derivative"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imglab_usage_pixels_processed_total",
			Help: "Total source pixels processed across successful images.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imglab_usage_bytes_saved_total",
			Help: "Total bytes saved relative to the sources across successful images.",
		}),
		computeSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imglab_usage_compute_seconds_total",
			Help: "Total compute time across successful images.",
		}),
		enqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imglab_queue_jobs_enqueued_total",
			Help: "Total derive jobs enqueued to the processing queue.",
		}, []string{"queue"}),
	}

	registry.MustRegister(
		m.imagesTotal,
		m.imageDuration,
		m.activeImages,
		m.stageDuration,
		m.outputsTotal,
		m.outputBytes,
		m.pixelsProcessedTotal,
		m.bytesSavedTotal,
		m.computeSecondsTotal,
		m.enqueuedTotal,
	)
	return m
}

func (m *Metrics) ObserveStage(derivative string, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(derivative).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOutput(derivative string, bytes int64) {
	m.outputsTotal.WithLabelValues(derivative).Inc()
	m.outputBytes.WithLabelValues(derivative).Observe(float64(bytes))
}

// ObserveImage records the outcome of one image. Usage only counts on success.
func (m *Metrics) ObserveImage(sourceType, status string, elapsed time.Duration, usage domain.Usage) {
	if sourceType == "" {
		sourceType = domain.SourceTypeLocalFile
	}
	m.imagesTotal.WithLabelValues(sourceType, status).Inc()
	m.imageDuration.WithLabelValues(sourceType, status).Observe(elapsed.Seconds())
	if status != domain.StatusSucceeded {
		return
	}
	m.pixelsProcessedTotal.Add(float64(usage.PixelsProcessed))
	m.bytesSavedTotal.Add(float64(usage.BytesSaved()))
	m.computeSecondsTotal.Add(usage.ComputeTime.Seconds())
}

// TrackActive marks an image as in flight until the returned func is called.
func (m *Metrics) TrackActive() func() {
	m.activeImages.Inc()
	return m.activeImages.Dec
}

func (m *Metrics) ObserveEnqueued(queue string) {
	m.enqueuedTotal.WithLabelValues(queue).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry in the text exposition format for the node
// exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
