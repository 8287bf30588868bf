package pipeline

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/dunamismax/imglab/internal/domain"
)

func BenchmarkProcessorCompare(b *testing.B) {
	benchmarkDerivative(b, domain.DerivativeCompare)
}

func BenchmarkProcessorSquare(b *testing.B) {
	benchmarkDerivative(b, domain.DerivativeSquare)
}

func BenchmarkProcessorWatermark(b *testing.B) {
	benchmarkDerivative(b, domain.DerivativeWatermark)
}

func benchmarkDerivative(b *testing.B, derivative string) {
	processor := newTestProcessor(b, Options{})
	processor.SetStages(staticFetcher{data: benchmarkPNG(b, 1920, 1080)}, nil)

	req := domain.DeriveRequest{
		InputPath:     "bench.png",
		OutputDir:     b.TempDir(),
		Derivatives:   []string{derivative},
		QualityLevels: []int{75, 85, 95},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

type staticFetcher struct {
	data []byte
}

func (f staticFetcher) Fetch(_ context.Context, _ domain.DeriveRequest) ([]byte, error) {
	return f.data, nil
}

func benchmarkPNG(b *testing.B, w, h int) []byte {
	b.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, gradientImage(w, h)); err != nil {
		b.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
