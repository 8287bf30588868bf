package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestCompareWritesEveryLevelInOrder(t *testing.T) {
	p := newTestProcessor(t, Options{})
	outputDir := filepath.Join(t.TempDir(), "out")
	levels := []int{95, 60, 80}

	results, err := p.Compare(context.Background(), NewBuffer("sample", noisyImage(160, 120)), outputDir, levels)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(results) != len(levels) {
		t.Fatalf("expected %d results, got %d", len(levels), len(results))
	}
	for i, r := range results {
		if r.Quality != levels[i] {
			t.Fatalf("result %d: expected quality %d, got %d", i, levels[i], r.Quality)
		}
		want := filepath.Join(outputDir, fmt.Sprintf("sample-%d.jpg", levels[i]))
		if r.Path != want {
			t.Fatalf("result %d: expected path %s, got %s", i, want, r.Path)
		}
		info, err := os.Stat(r.Path)
		if err != nil {
			t.Fatalf("stat %s: %v", r.Path, err)
		}
		if info.Size() != r.Bytes {
			t.Fatalf("result %d: reported %d bytes, file has %d", i, r.Bytes, info.Size())
		}
	}
}

func TestCompareIsDeterministic(t *testing.T) {
	p := newTestProcessor(t, Options{})
	src := noisyImage(96, 64)

	first, err := p.Compare(context.Background(), NewBuffer("a", src), t.TempDir(), []int{85})
	if err != nil {
		t.Fatalf("first compare: %v", err)
	}
	second, err := p.Compare(context.Background(), NewBuffer("a", src), t.TempDir(), []int{85})
	if err != nil {
		t.Fatalf("second compare: %v", err)
	}

	a, _ := os.ReadFile(first[0].Path)
	b, _ := os.ReadFile(second[0].Path)
	if len(a) == 0 || !bytes.Equal(a, b) {
		t.Fatal("expected identical output for identical input and quality")
	}
}

func TestCompareSizeGrowsWithQuality(t *testing.T) {
	p := newTestProcessor(t, Options{})

	results, err := p.Compare(context.Background(), NewBuffer("noise", noisyImage(200, 150)), t.TempDir(), []int{30, 70, 95})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Bytes <= results[i-1].Bytes {
			t.Fatalf("expected q%d (%d bytes) to exceed q%d (%d bytes)",
				results[i].Quality, results[i].Bytes, results[i-1].Quality, results[i-1].Bytes)
		}
	}
}

func TestCompareDefaultsToConfiguredLevels(t *testing.T) {
	p := newTestProcessor(t, Options{QualityLevels: []int{50, 90}})

	results, err := p.Compare(context.Background(), NewBuffer("d", gradientImage(32, 32)), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(results) != 2 || results[0].Quality != 50 || results[1].Quality != 90 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestCompareRejectsInvalidQualityBeforeWriting(t *testing.T) {
	p := newTestProcessor(t, Options{})
	outputDir := filepath.Join(t.TempDir(), "out")

	_, err := p.Compare(context.Background(), NewBuffer("bad", gradientImage(8, 8)), outputDir, []int{80, 101})
	if !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("expected ErrInvalidQuality, got %v", err)
	}
	if _, statErr := os.Stat(outputDir); !os.IsNotExist(statErr) {
		t.Fatal("expected no output directory to be created")
	}
}
