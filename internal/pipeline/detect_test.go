package pipeline

import (
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"main/internal/provider"
)

// testImage writes a small valid PNG and returns its path.
func testImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}

func TestThresholdFilterKeepsBoth(t *testing.T) {
	// Two "person" boxes at 0.4 and 0.9 with threshold 0.3: both retained.
	detector := &fakeDetector{boxes: []provider.Box{
		{Label: "person", Confidence: 0.4, X1: 0, Y1: 0, X2: 10, Y2: 10},
		{Label: "person", Confidence: 0.9, X1: 20, Y1: 20, X2: 40, Y2: 40},
	}}
	p := &DetectPipeline{Detector: detector, Threshold: 0.3}

	boxes, err := p.Run(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("boxes = %d, want 2", len(boxes))
	}

	summaries := Summarize(boxes)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.Label != "person" || s.Samples != 2 || math.Abs(s.Median-0.65) > 1e-9 {
		t.Errorf("summary = %+v, want person, median 0.65, 2 samples", s)
	}
}

func TestLowConfidenceBoxesDropped(t *testing.T) {
	detector := &fakeDetector{boxes: []provider.Box{
		{Label: "dog", Confidence: 0.29, X1: 0, Y1: 0, X2: 5, Y2: 5},
		{Label: "cat", Confidence: 0.31, X1: 0, Y1: 0, X2: 5, Y2: 5},
	}}
	p := &DetectPipeline{Detector: detector, Threshold: 0.3}

	boxes, err := p.Run(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(boxes) != 1 || boxes[0].Label != "cat" {
		t.Errorf("boxes = %+v, want only the cat", boxes)
	}
}

func TestZeroDetectionsIsNotAnError(t *testing.T) {
	p := &DetectPipeline{Detector: &fakeDetector{}, Threshold: 0.3}

	boxes, err := p.Run(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if boxes == nil || len(boxes) != 0 {
		t.Errorf("boxes = %v, want empty non-nil slice", boxes)
	}
}

func TestDetectionIsIdempotent(t *testing.T) {
	detector := &fakeDetector{boxes: []provider.Box{
		{Label: "car", Confidence: 0.8, X1: 1, Y1: 2, X2: 3, Y2: 4},
		{Label: "bus", Confidence: 0.2, X1: 1, Y1: 2, X2: 3, Y2: 4},
	}}
	p := &DetectPipeline{Detector: detector, Threshold: 0.3}
	img := testImage(t)

	first, err := p.Run(context.Background(), img)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := p.Run(context.Background(), img)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two runs differ: %+v vs %+v", first, second)
	}
}

func TestDegenerateGeometryDropped(t *testing.T) {
	detector := &fakeDetector{boxes: []provider.Box{
		{Label: "ok", Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10},
		{Label: "inverted", Confidence: 0.9, X1: 10, Y1: 10, X2: 0, Y2: 0},
		{Label: "zero-width", Confidence: 0.9, X1: 5, Y1: 0, X2: 5, Y2: 10},
	}}
	p := &DetectPipeline{Detector: detector, Threshold: 0.3}

	boxes, err := p.Run(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(boxes) != 1 || boxes[0].Label != "ok" {
		t.Errorf("boxes = %+v, want only the well-formed one", boxes)
	}
}

func TestLabelTranslation(t *testing.T) {
	detector := &fakeDetector{boxes: []provider.Box{
		{Label: "dog", Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10},
	}}
	p := &DetectPipeline{
		Detector:  detector,
		Threshold: 0.3,
		Labels:    map[string]string{"dog": "cachorro"},
	}

	boxes, err := p.Run(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if boxes[0].Label != "cachorro" {
		t.Errorf("label = %q, want cachorro", boxes[0].Label)
	}
}

func TestUnreadableImageIsDecodeError(t *testing.T) {
	detector := &fakeDetector{}
	p := &DetectPipeline{Detector: detector, Threshold: 0.3}

	_, err := p.Run(context.Background(), "/nonexistent/photo.jpg")
	var de *provider.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	if detector.calls != 0 {
		t.Error("detector must not run on an unreadable image")
	}
}

func TestCorruptImageIsDecodeError(t *testing.T) {
	// Non-empty bytes without an image header: must fail as unreadable
	// media, never as a provider outage.
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("this is not a jpeg"), 0o600); err != nil {
		t.Fatal(err)
	}
	detector := &fakeDetector{}
	p := &DetectPipeline{Detector: detector, Threshold: 0.3}

	_, err := p.Run(context.Background(), path)
	var de *provider.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	if provider.Unavailable(err) {
		t.Error("corrupt image must not be reported as provider unavailability")
	}
	if detector.calls != 0 {
		t.Error("detector must not run on a corrupt image")
	}
}

func TestSummarizeFiltersOutliers(t *testing.T) {
	boxes := []provider.Box{
		{Label: "bird", Confidence: 0.70, X1: 0, Y1: 0, X2: 1, Y2: 1},
		{Label: "bird", Confidence: 0.72, X1: 0, Y1: 0, X2: 1, Y2: 1},
		{Label: "bird", Confidence: 0.71, X1: 0, Y1: 0, X2: 1, Y2: 1},
		{Label: "bird", Confidence: 0.73, X1: 0, Y1: 0, X2: 1, Y2: 1},
		{Label: "bird", Confidence: 0.05, X1: 0, Y1: 0, X2: 1, Y2: 1}, // outlier
	}
	summaries := Summarize(boxes)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	if summaries[0].Samples != 4 {
		t.Errorf("samples = %d, want 4 after IQR filtering", summaries[0].Samples)
	}
	if summaries[0].Median < 0.70 || summaries[0].Median > 0.73 {
		t.Errorf("median = %f, want within the inlier range", summaries[0].Median)
	}
}
