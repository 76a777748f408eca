package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"main/internal/metrics"
	"main/internal/provider"
)

// FacePipeline runs age/gender estimation on a stored photo artifact.
type FacePipeline struct {
	Analyzer provider.FaceAnalyzer
}

// Run analyzes the image at imagePath. A nil Face with a nil error means the
// provider ran and found no clear face.
func (p *FacePipeline) Run(ctx context.Context, imagePath string) (*provider.Face, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues("face").Observe(time.Since(start).Seconds())
	}()

	metrics.ProviderCalls.WithLabelValues("face").Inc()
	face, err := p.Analyzer.Analyze(ctx, imagePath)
	if errors.Is(err, provider.ErrNoResult) {
		return nil, nil
	}
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("face", errKind(err)).Inc()
		return nil, fmt.Errorf("face analysis: %w", err)
	}
	return face, nil
}
