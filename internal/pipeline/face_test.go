package pipeline

import (
	"context"
	"errors"
	"testing"

	"main/internal/provider"
)

type fakeAnalyzer struct {
	face *provider.Face
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, imagePath string) (*provider.Face, error) {
	return f.face, f.err
}

func TestFacePipelineReturnsFace(t *testing.T) {
	want := &provider.Face{Age: 31, Gender: "Woman", Region: provider.Box{X1: 10, Y1: 10, X2: 60, Y2: 70}}
	p := &FacePipeline{Analyzer: &fakeAnalyzer{face: want}}

	got, err := p.Run(context.Background(), "photo.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got == nil || got.Age != 31 || got.Gender != "Woman" {
		t.Errorf("face = %+v, want %+v", got, want)
	}
}

func TestFacePipelineNoFaceIsNotAnError(t *testing.T) {
	p := &FacePipeline{Analyzer: &fakeAnalyzer{err: provider.ErrNoResult}}

	got, err := p.Run(context.Background(), "photo.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != nil {
		t.Errorf("face = %+v, want nil for no-face", got)
	}
}

func TestFacePipelinePropagatesUnavailable(t *testing.T) {
	p := &FacePipeline{Analyzer: &fakeAnalyzer{
		err: &provider.UnavailableError{Provider: "face", Err: errors.New("down")},
	}}

	if _, err := p.Run(context.Background(), "photo.jpg"); !provider.Unavailable(err) {
		t.Fatalf("error = %v, want UnavailableError", err)
	}
}
