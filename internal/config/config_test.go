package config

import (
	"reflect"
	"testing"

	"github.com/dunamismax/imglab/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"IMGLAB_QUALITY_LEVELS", "IMGLAB_SQUARE_SIDE", "IMGLAB_CAPTION", "IMGLAB_TRACE_EXPORTER"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if !reflect.DeepEqual(cfg.Derive.QualityLevels, domain.DefaultQualityLevels()) {
		t.Fatalf("expected default quality levels, got %v", cfg.Derive.QualityLevels)
	}
	if cfg.Derive.SquareSide != 1080 {
		t.Fatalf("expected square side 1080, got %d", cfg.Derive.SquareSide)
	}
	if cfg.Derive.Caption != "imgLab" {
		t.Fatalf("expected default caption, got %q", cfg.Derive.Caption)
	}
	if cfg.Telemetry.TraceExporter != "none" {
		t.Fatalf("expected tracing disabled by default, got %q", cfg.Telemetry.TraceExporter)
	}
	if cfg.Derive.OutputParent == "" {
		t.Fatal("expected an output parent directory")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IMGLAB_QUALITY_LEVELS", "60, 70,80")
	t.Setenv("IMGLAB_SQUARE_SIDE", "512")
	t.Setenv("IMGLAB_ASSUME_UNSPECIFIED", "true")
	t.Setenv("IMGLAB_OUTPUT_PARENT", "/tmp/derived")
	t.Setenv("WORKER_CONCURRENCY", "3")
	t.Setenv("IMGLAB_PARTIAL_QUALITY", "0")
	t.Setenv("IMGLAB_SQUARE_CAPTION", "Shot on imgLab")

	cfg := Load()
	if !reflect.DeepEqual(cfg.Derive.QualityLevels, []int{60, 70, 80}) {
		t.Fatalf("unexpected quality levels %v", cfg.Derive.QualityLevels)
	}
	if cfg.Derive.SquareSide != 512 {
		t.Fatalf("expected square side 512, got %d", cfg.Derive.SquareSide)
	}
	if !cfg.Derive.AssumeUnspecified {
		t.Fatal("expected AssumeUnspecified to be set")
	}
	if cfg.Derive.OutputParent != "/tmp/derived" {
		t.Fatalf("unexpected output parent %q", cfg.Derive.OutputParent)
	}
	if cfg.Worker.Concurrency != 3 {
		t.Fatalf("expected concurrency 3, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Derive.PartialQuality != 0 {
		t.Fatalf("expected partial quality 0, got %d", cfg.Derive.PartialQuality)
	}
	if cfg.Derive.SquareCaption != "Shot on imgLab" {
		t.Fatalf("unexpected square caption %q", cfg.Derive.SquareCaption)
	}
}

func TestEnvIntsRejectsMalformedList(t *testing.T) {
	t.Setenv("IMGLAB_TEST_LEVELS", "80,abc")
	got := envInts("IMGLAB_TEST_LEVELS", []int{1})
	if !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("expected fallback for malformed list, got %v", got)
	}

	t.Setenv("IMGLAB_TEST_INT", "nope")
	if got := envInt("IMGLAB_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}
