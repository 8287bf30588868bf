package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/dunamismax/imglab/internal/config"
	"github.com/dunamismax/imglab/internal/domain"
	"github.com/dunamismax/imglab/internal/pipeline"
)

func TestRequestDefaultsToEveryDerivative(t *testing.T) {
	req, err := cliOptions{side: 1080}.request(config.DeriveConfig{QualityLevels: []int{80}})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	want := []string{domain.DerivativeCompare, domain.DerivativeSquare, domain.DerivativeWatermark}
	if !reflect.DeepEqual(req.Derivatives, want) {
		t.Fatalf("expected %v, got %v", want, req.Derivatives)
	}
	if !reflect.DeepEqual(req.QualityLevels, []int{80}) {
		t.Fatalf("expected configured levels, got %v", req.QualityLevels)
	}
}

func TestRequestPartialImpliesWatermark(t *testing.T) {
	req, err := cliOptions{partial: true, qualities: "60,70", side: 500}.request(config.DeriveConfig{})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !reflect.DeepEqual(req.Derivatives, []string{domain.DerivativeWatermark}) || !req.EmitPartial {
		t.Fatalf("unexpected request %+v", req)
	}
	if !reflect.DeepEqual(req.QualityLevels, []int{60, 70}) {
		t.Fatalf("unexpected levels %v", req.QualityLevels)
	}
}

func TestParseLevelsRejectsOutOfRange(t *testing.T) {
	if _, err := parseLevels("80,101"); err == nil {
		t.Fatal("expected error for quality above 100")
	}
	if _, err := parseLevels(" , "); err == nil {
		t.Fatal("expected error for empty list")
	}
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, pipeline.Report{
		Input:       "/photos/cat.jpg",
		Width:       4000,
		Height:      3000,
		SourceBytes: 2_500_000,
		Comparisons: []domain.ComparisonResult{{Quality: 85, Bytes: 512}, {Quality: 95, Bytes: 1_300_000}},
		SquarePath:  "/out/cat-Square.jpg",
	})

	text := out.String()
	for _, want := range []string{"cat.jpg (4000x3000, 2,441 KB)", "512 bytes", "1,269 KB", "/out/cat-Square.jpg"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}
