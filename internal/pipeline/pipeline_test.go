package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"main/internal/provider"
)

// testWAV writes a mono PCM16 WAV of the given duration and returns its path.
func testWAV(t *testing.T, seconds float64, rate int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	frames := int(seconds * float64(rate))
	data := make([]int, frames)
	for i := 0; i < frames; i++ {
		data[i] = (i % 200) * 100
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{SampleRate: rate, NumChannels: 1},
		Data:   data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

// --- fakes ---

type fakeClassifier struct {
	frames *provider.FrameScores
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, samples []float32, rate int) (*provider.FrameScores, error) {
	f.calls++
	return f.frames, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	lang  string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wavPath, language string) (*provider.Transcription, error) {
	f.calls++
	f.lang = language
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Transcription{Text: f.text, Language: language, Source: "fake"}, nil
}

type fakeTranslator struct {
	out   string
	err   error
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeSearcher struct {
	hits  []provider.VideoHit
	err   error
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]provider.VideoHit, error) {
	f.calls++
	return f.hits, f.err
}

type fakeFingerprinter struct {
	candidate *provider.SongCandidate
	err       error
	calls     int
}

func (f *fakeFingerprinter) Match(ctx context.Context, wavPath string) (*provider.SongCandidate, error) {
	f.calls++
	return f.candidate, f.err
}

type fakeFallback struct {
	candidate *provider.SongCandidate
	err       error
	calls     int
}

func (f *fakeFallback) Identify(ctx context.Context, wavPath string) (*provider.SongCandidate, error) {
	f.calls++
	return f.candidate, f.err
}

type fakeDetector struct {
	boxes []provider.Box
	err   error
	calls int
}

func (f *fakeDetector) Detect(ctx context.Context, imagePath string) ([]provider.Box, error) {
	f.calls++
	return f.boxes, f.err
}

// scoresFor builds per-frame scores over a fixed class map.
func scoresFor(frames ...map[string]float64) *provider.FrameScores {
	classes := []string{"Speech", "Dog", "Silence", "Music", "Conversation"}
	out := &provider.FrameScores{Classes: classes}
	for _, f := range frames {
		row := make([]float64, len(classes))
		for i, c := range classes {
			row[i] = f[c]
		}
		out.Frames = append(out.Frames, row)
	}
	return out
}
