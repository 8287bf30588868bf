package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/dunamismax/imglab/internal/domain"
	"github.com/hibiken/asynq"
)

type Config struct {
	Derive    DeriveConfig
	Telemetry TelemetryConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Webhook   WebhookConfig
}

type DeriveConfig struct {
	OutputParent      string
	QualityLevels     []int
	SquareSide        int
	SquareQuality     int
	WatermarkQuality  int
	PartialQuality    int
	Caption           string
	SquareCaption     string
	FontPath          string
	AssumeUnspecified bool
}

type TelemetryConfig struct {
	TraceExporter string
	OTLPEndpoint  string
	OTLPInsecure  bool
	MetricsFile   string
	MetricsAddr   string
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency    int
	MaxActiveJobs  int
	LocalOutputDir string
	OutputPrefix   string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type WebhookConfig struct {
	SigningSecret string
	MaxAttempts   int
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		Derive: DeriveConfig{
			OutputParent:      env("IMGLAB_OUTPUT_PARENT", defaultOutputParent()),
			QualityLevels:     envInts("IMGLAB_QUALITY_LEVELS", domain.DefaultQualityLevels()),
			SquareSide:        envInt("IMGLAB_SQUARE_SIDE", domain.DefaultSquareSide),
			SquareQuality:     envInt("IMGLAB_SQUARE_QUALITY", domain.DefaultSquareQuality),
			WatermarkQuality:  envInt("IMGLAB_WATERMARK_QUALITY", domain.DefaultWatermarkQuality),
			PartialQuality:    envInt("IMGLAB_PARTIAL_QUALITY", domain.DefaultPartialQuality),
			Caption:           env("IMGLAB_CAPTION", "imgLab"),
			SquareCaption:     env("IMGLAB_SQUARE_CAPTION", ""),
			FontPath:          env("IMGLAB_FONT_PATH", ""),
			AssumeUnspecified: envBool("IMGLAB_ASSUME_UNSPECIFIED", false),
		},
		Telemetry: TelemetryConfig{
			TraceExporter: env("IMGLAB_TRACE_EXPORTER", "none"),
			OTLPEndpoint:  env("IMGLAB_OTLP_ENDPOINT", ""),
			OTLPInsecure:  envBool("IMGLAB_OTLP_INSECURE", true),
			MetricsFile:   env("IMGLAB_METRICS_FILE", ""),
			MetricsAddr:   env("IMGLAB_METRICS_ADDR", ":9464"),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:    envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs:  envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			LocalOutputDir: env("WORKER_LOCAL_OUTPUT_DIR", "./.imglab-output"),
			OutputPrefix:   env("WORKER_OUTPUT_PREFIX", "derivatives"),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "imglab"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Webhook: WebhookConfig{
			SigningSecret: env("WEBHOOK_SIGNING_SECRET", ""),
			MaxAttempts:   envInt("WEBHOOK_MAX_ATTEMPTS", 3),
		},
	}
}

// defaultOutputParent is the user's Desktop when it exists, else the working
// directory.
func defaultOutputParent() string {
	if home, err := os.UserHomeDir(); err == nil {
		desktop := filepath.Join(home, "Desktop")
		if info, err := os.Stat(desktop); err == nil && info.IsDir() {
			return desktop
		}
	}
	return "."
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envInts parses a comma separated list. Any malformed element discards the
// whole value.
func envInts(key string, fallback []int) []int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := strconv.Atoi(part)
		if err != nil {
			return fallback
		}
		out = append(out, parsed)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
