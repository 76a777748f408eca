package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"main/internal/provider"
)

func newAudioPipeline(c *fakeClassifier, t *fakeTranscriber) *AudioPipeline {
	return &AudioPipeline{
		Classifier:      c,
		Transcriber:     t,
		TargetRate:      16000,
		SpeechThreshold: 0.15,
		TopK:            3,
		ChatLanguage:    "pt",
	}
}

func TestSpeechTopLabelTriggersTranscription(t *testing.T) {
	classifier := &fakeClassifier{frames: scoresFor(
		map[string]float64{"Speech": 0.9, "Dog": 0.05},
	)}
	transcriber := &fakeTranscriber{text: "bom dia"}
	p := newAudioPipeline(classifier, transcriber)

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if transcriber.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", transcriber.calls)
	}
	if result.State != TranscriptOK || result.Text != "bom dia" {
		t.Errorf("state/text = %v/%q, want ok/bom dia", result.State, result.Text)
	}
	if result.TopScores[0].Label != "Speech" {
		t.Errorf("top label = %q, want Speech", result.TopScores[0].Label)
	}
}

func TestNonSpeechClipSkipsTranscription(t *testing.T) {
	// Classifier scores {Speech: 0.1, Dog: 0.85, Silence: 0.05} with a 0.15
	// threshold: speech probability 0.1, top label Dog, gate stays closed.
	classifier := &fakeClassifier{frames: scoresFor(
		map[string]float64{"Speech": 0.1, "Dog": 0.85, "Silence": 0.05},
	)}
	transcriber := &fakeTranscriber{text: "should never be seen"}
	p := newAudioPipeline(classifier, transcriber)

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if transcriber.calls != 0 {
		t.Errorf("transcriber calls = %d, want 0", transcriber.calls)
	}
	if result.State != TranscriptSkipped {
		t.Errorf("state = %v, want skipped", result.State)
	}
	if math.Abs(result.SpeechProb-0.1) > 1e-9 {
		t.Errorf("speech probability = %f, want 0.1", result.SpeechProb)
	}
}

func TestAggregateSpeechProbabilityOpensGate(t *testing.T) {
	// No speech class wins top-1, but Speech + Conversation sum above the
	// threshold.
	classifier := &fakeClassifier{frames: scoresFor(
		map[string]float64{"Music": 0.5, "Speech": 0.12, "Conversation": 0.1},
	)}
	transcriber := &fakeTranscriber{text: "letra da música"}
	p := newAudioPipeline(classifier, transcriber)

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != TranscriptOK {
		t.Errorf("state = %v, want ok (aggregate prob 0.22 > 0.15)", result.State)
	}
}

func TestMeanAggregationAcrossFrames(t *testing.T) {
	classifier := &fakeClassifier{frames: scoresFor(
		map[string]float64{"Dog": 1.0},
		map[string]float64{"Dog": 0.5},
		map[string]float64{"Dog": 0.0, "Silence": 0.9},
	)}
	p := newAudioPipeline(classifier, &fakeTranscriber{})

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := result.TopScores[0]; got.Label != "Dog" || math.Abs(got.Confidence-0.5) > 1e-9 {
		t.Errorf("top score = %+v, want Dog at 0.5 (mean of 1.0, 0.5, 0.0)", got)
	}
}

func TestEmptyAndUnintelligibleAreDistinct(t *testing.T) {
	speech := scoresFor(map[string]float64{"Speech": 0.9})

	empty := newAudioPipeline(&fakeClassifier{frames: speech}, &fakeTranscriber{text: ""})
	result, err := empty.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != TranscriptEmpty {
		t.Errorf("empty transcript state = %v, want TranscriptEmpty", result.State)
	}

	unintelligible := newAudioPipeline(
		&fakeClassifier{frames: speech},
		&fakeTranscriber{err: provider.ErrNoResult},
	)
	result, err = unintelligible.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != TranscriptUnintelligible {
		t.Errorf("unintelligible state = %v, want TranscriptUnintelligible", result.State)
	}
}

func TestClassifierNoResultIsEmptyOutcome(t *testing.T) {
	// The classifier ran and scored nothing: an empty result for the user,
	// never a transient-failure error.
	classifier := &fakeClassifier{err: provider.ErrNoResult}
	transcriber := &fakeTranscriber{text: "should never be seen"}
	p := newAudioPipeline(classifier, transcriber)

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.TopScores) != 0 {
		t.Errorf("top scores = %+v, want none", result.TopScores)
	}
	if result.State != TranscriptSkipped {
		t.Errorf("state = %v, want skipped", result.State)
	}
	if transcriber.calls != 0 {
		t.Error("transcriber must not run without classification scores")
	}
}

func TestMeanScoresWithZeroFramesYieldsZeroes(t *testing.T) {
	scores := meanScores(&provider.FrameScores{Classes: []string{"Speech", "Dog"}})
	if len(scores) != 2 {
		t.Fatalf("scores = %d, want 2", len(scores))
	}
	for _, s := range scores {
		if math.IsNaN(s.Confidence) || s.Confidence != 0 {
			t.Errorf("%s confidence = %f, want 0", s.Label, s.Confidence)
		}
	}
}

func TestClassifierUnavailableAbortsPipeline(t *testing.T) {
	classifier := &fakeClassifier{err: &provider.UnavailableError{Provider: "classifier", Err: errors.New("timeout")}}
	transcriber := &fakeTranscriber{}
	p := newAudioPipeline(classifier, transcriber)

	_, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if !provider.Unavailable(err) {
		t.Fatalf("error = %v, want UnavailableError", err)
	}
	if transcriber.calls != 0 {
		t.Error("transcriber must not run when the primary classifier fails")
	}
}

func TestTranscriberFailureDegradesToClassification(t *testing.T) {
	classifier := &fakeClassifier{frames: scoresFor(map[string]float64{"Speech": 0.9})}
	transcriber := &fakeTranscriber{err: &provider.UnavailableError{Provider: "transcriber", Err: errors.New("down")}}
	p := newAudioPipeline(classifier, transcriber)

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt")
	if err != nil {
		t.Fatalf("Run should degrade, got error: %v", err)
	}
	if result.State != TranscriptFailed {
		t.Errorf("state = %v, want TranscriptFailed", result.State)
	}
	if len(result.TopScores) == 0 {
		t.Error("classification must survive a transcriber failure")
	}
}

func TestTranslationWhenLanguageDiffers(t *testing.T) {
	classifier := &fakeClassifier{frames: scoresFor(map[string]float64{"Speech": 0.9})}
	transcriber := &fakeTranscriber{text: "good morning"}
	translator := &fakeTranslator{out: "bom dia"}

	p := newAudioPipeline(classifier, transcriber)
	p.Translator = translator

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "en")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if translator.calls != 1 {
		t.Errorf("translator calls = %d, want 1", translator.calls)
	}
	if result.Translated != "bom dia" {
		t.Errorf("translated = %q, want bom dia", result.Translated)
	}

	// Same language: no translation call.
	translator.calls = 0
	if _, err := p.Run(context.Background(), testWAV(t, 1, 16000), "pt"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if translator.calls != 0 {
		t.Errorf("translator calls for matching language = %d, want 0", translator.calls)
	}
}

func TestTranslationFailureKeepsTranscript(t *testing.T) {
	classifier := &fakeClassifier{frames: scoresFor(map[string]float64{"Speech": 0.9})}
	transcriber := &fakeTranscriber{text: "good morning"}
	translator := &fakeTranslator{err: &provider.UnavailableError{Provider: "translator", Err: errors.New("down")}}

	p := newAudioPipeline(classifier, transcriber)
	p.Translator = translator

	result, err := p.Run(context.Background(), testWAV(t, 1, 16000), "en")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != TranscriptOK || result.Text != "good morning" {
		t.Errorf("transcript lost on translation failure: %v/%q", result.State, result.Text)
	}
	if result.Translated != "" {
		t.Errorf("translated = %q, want empty", result.Translated)
	}
}

func TestDecodeFailureIsTerminal(t *testing.T) {
	classifier := &fakeClassifier{frames: scoresFor(map[string]float64{"Speech": 0.9})}
	p := newAudioPipeline(classifier, &fakeTranscriber{})

	_, err := p.Run(context.Background(), "/nonexistent/clip.wav", "pt")
	var de *provider.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	if classifier.calls != 0 {
		t.Error("classifier must not run on undecodable input")
	}
}
