package pipeline

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"
	"time"

	"main/internal/metrics"
	"main/internal/provider"
)

// DetectPipeline filters raw detector output down to trustworthy boxes and
// optionally summarizes repeated classes.
type DetectPipeline struct {
	Detector provider.ObjectDetector
	// Threshold drops boxes below this confidence.
	Threshold float64
	// Labels optionally maps detector class names to user-facing names.
	Labels map[string]string
}

// ClassSummary is the per-class statistical refinement: the IQR-filtered
// median confidence and how many boxes survived the filter.
type ClassSummary struct {
	Label   string
	Median  float64
	Samples int
}

// Run detects objects in the image at imagePath and returns the boxes at or
// above the confidence threshold. Zero boxes is a valid, non-error outcome.
func (p *DetectPipeline) Run(ctx context.Context, imagePath string) ([]provider.Box, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	}()

	if err := checkImage(imagePath); err != nil {
		return nil, &provider.DecodeError{Media: "image", Err: err}
	}

	metrics.ProviderCalls.WithLabelValues("detector").Inc()
	raw, err := p.Detector.Detect(ctx, imagePath)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("detector", errKind(err)).Inc()
		return nil, fmt.Errorf("object detection: %w", err)
	}

	boxes := make([]provider.Box, 0, len(raw))
	for _, b := range raw {
		if b.Confidence < p.Threshold {
			continue
		}
		if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
			// Degenerate geometry from the provider; drop rather than render.
			continue
		}
		if name, ok := p.Labels[b.Label]; ok {
			b.Label = name
		}
		boxes = append(boxes, b)
	}
	return boxes, nil
}

// checkImage verifies the file holds a decodable image header before any
// detector bytes are spent on it. Corrupt downloads must surface as decode
// failures, not as a provider outage.
func checkImage(imagePath string) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("unreadable image %s: %w", imagePath, err)
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("unreadable image %s: %w", imagePath, err)
	}
	return nil
}

// Summarize groups boxes by class and reports, per class, the median
// confidence after discarding outliers outside 1.5×IQR of the quartiles.
// A presentation refinement, not a correctness requirement.
func Summarize(boxes []provider.Box) []ClassSummary {
	grouped := make(map[string][]float64)
	order := make([]string, 0)
	for _, b := range boxes {
		if _, seen := grouped[b.Label]; !seen {
			order = append(order, b.Label)
		}
		grouped[b.Label] = append(grouped[b.Label], b.Confidence)
	}

	summaries := make([]ClassSummary, 0, len(order))
	for _, label := range order {
		confs := grouped[label]
		sort.Float64s(confs)
		q1 := percentile(confs, 25)
		q3 := percentile(confs, 75)
		iqr := q3 - q1

		kept := confs[:0:0]
		for _, c := range confs {
			if c >= q1-1.5*iqr && c <= q3+1.5*iqr {
				kept = append(kept, c)
			}
		}
		summaries = append(summaries, ClassSummary{
			Label:   label,
			Median:  percentile(kept, 50),
			Samples: len(kept),
		})
	}
	return summaries
}

// percentile computes the p-th percentile of sorted values with linear
// interpolation between closest ranks (numpy's default method).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
