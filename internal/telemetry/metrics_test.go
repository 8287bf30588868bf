package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/imglab/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveImageCountsUsageOnSuccess(t *testing.T) {
	m := NewMetrics(false)

	m.ObserveImage(domain.SourceTypeLocalFile, domain.StatusSucceeded, time.Second, domain.Usage{
		PixelsProcessed: 500,
		SourceBytes:     1000,
		OutputBytes:     700,
		ComputeTime:     250 * time.Millisecond,
	})
	m.ObserveImage("", domain.StatusFailed, time.Second, domain.Usage{PixelsProcessed: 99})

	if got := testutil.ToFloat64(m.pixelsProcessedTotal); got != 500 {
		t.Fatalf("expected 500 pixels processed, got %f", got)
	}
	if got := testutil.ToFloat64(m.bytesSavedTotal); got != 300 {
		t.Fatalf("expected 300 bytes saved, got %f", got)
	}
	if got := testutil.ToFloat64(m.imagesTotal.WithLabelValues(domain.SourceTypeLocalFile, domain.StatusFailed)); got != 1 {
		t.Fatalf("expected one failed image, got %f", got)
	}
}

func TestTrackActive(t *testing.T) {
	m := NewMetrics(false)
	done := m.TrackActive()
	if got := testutil.ToFloat64(m.activeImages); got != 1 {
		t.Fatalf("expected one active image, got %f", got)
	}
	done()
	if got := testutil.ToFloat64(m.activeImages); got != 0 {
		t.Fatalf("expected no active images, got %f", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics(false)
	m.ObserveOutput(domain.DerivativeSquare, 2048)
	m.ObserveStage(domain.DerivativeSquare, 20*time.Millisecond)

	path := filepath.Join(t.TempDir(), "imglab.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `imglab_outputs_total{derivative="square"} 1`) {
		t.Fatalf("expected square output counter in textfile, got:\n%s", data)
	}
}
