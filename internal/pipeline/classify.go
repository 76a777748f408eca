// Package pipeline holds the decision logic of the bot: the audio
// classification pipeline with its speech gate, the song identification
// state machine and the image detection pipeline. Providers do the heavy
// lifting; this package decides what to call, in what order, and how to
// merge the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"main/internal/audio"
	"main/internal/metrics"
	"main/internal/provider"
)

// speechLabels are the classifier classes that indicate human speech. The
// gate sums their aggregated scores into the clip's speech probability.
var speechLabels = map[string]bool{
	"Speech":                     true,
	"Child speech, kid speaking": true,
	"Conversation":               true,
	"Narration, monologue":       true,
	"Chatter":                    true,
}

// TranscriptState distinguishes the transcription outcomes the caller must
// report differently.
type TranscriptState int

const (
	// TranscriptSkipped: the gate decided the clip is not speech.
	TranscriptSkipped TranscriptState = iota
	// TranscriptOK: text was recognized (possibly then translated).
	TranscriptOK
	// TranscriptEmpty: the transcriber ran and found no words.
	TranscriptEmpty
	// TranscriptUnintelligible: audio present but not understandable.
	TranscriptUnintelligible
	// TranscriptFailed: the transcriber was unavailable; classification
	// still stands as a partial result.
	TranscriptFailed
)

// AudioResult is the merged outcome of one clip submission.
type AudioResult struct {
	TopScores  []provider.LabelScore // descending confidence, top-K
	SpeechProb float64
	State      TranscriptState
	Text       string
	Translated string // non-empty when the transcript was translated
	Language   string
}

// AudioPipeline orchestrates classifier → gate → transcriber → translator.
type AudioPipeline struct {
	Classifier  provider.SoundClassifier
	Transcriber provider.SpeechTranscriber
	Translator  provider.Translator

	// TargetRate is the sample rate the classifier requires.
	TargetRate int
	// SpeechThreshold gates transcription on aggregate speech probability.
	SpeechThreshold float64
	// TopK limits how many classes the result carries.
	TopK int
	// ChatLanguage is the language replies are written in; transcripts in a
	// different selected language get translated into it.
	ChatLanguage string
}

// Run classifies the WAV at wavPath and, when the speech gate opens,
// transcribes it in the session's language. The classifier is the primary
// step: its failure aborts the pipeline. Transcription and translation are
// optional steps and degrade to partial results.
func (p *AudioPipeline) Run(ctx context.Context, wavPath, language string) (*AudioResult, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues("audio").Observe(time.Since(start).Seconds())
	}()

	clip, err := audio.DecodeWAV(wavPath)
	if err != nil {
		return nil, err
	}
	if clip.NeedsResample(p.TargetRate) {
		clip = clip.Resampled(p.TargetRate)
	}

	metrics.ProviderCalls.WithLabelValues("classifier").Inc()
	frames, err := p.Classifier.Classify(ctx, clip.Samples, clip.SampleRate)
	if errors.Is(err, provider.ErrNoResult) {
		// The classifier ran and scored nothing. An empty outcome for the
		// user, not a service failure.
		metrics.TranscriptionsGated.WithLabelValues("skipped").Inc()
		return &AudioResult{State: TranscriptSkipped, Language: language}, nil
	}
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("classifier", errKind(err)).Inc()
		return nil, fmt.Errorf("sound classification: %w", err)
	}

	scores := meanScores(frames)
	topK := topScores(scores, p.TopK)
	speechProb := 0.0
	for _, s := range scores {
		if speechLabels[s.Label] {
			speechProb += s.Confidence
		}
	}

	result := &AudioResult{
		TopScores:  topK,
		SpeechProb: speechProb,
		Language:   language,
	}

	// Gate: transcribe when the top label is a speech class OR the summed
	// speech probability clears the threshold. Keeps transcription cost off
	// clearly non-speech clips without missing borderline speech.
	gatedIn := (len(topK) > 0 && speechLabels[topK[0].Label]) || speechProb > p.SpeechThreshold
	if !gatedIn {
		metrics.TranscriptionsGated.WithLabelValues("skipped").Inc()
		result.State = TranscriptSkipped
		return result, nil
	}
	metrics.TranscriptionsGated.WithLabelValues("attempted").Inc()

	metrics.ProviderCalls.WithLabelValues("transcriber").Inc()
	tr, err := p.Transcriber.Transcribe(ctx, wavPath, language)
	switch {
	case errors.Is(err, provider.ErrNoResult):
		result.State = TranscriptUnintelligible
		return result, nil
	case err != nil:
		metrics.ProviderErrors.WithLabelValues("transcriber", errKind(err)).Inc()
		slog.Warn("transcription failed, returning classification only", "err", err)
		result.State = TranscriptFailed
		return result, nil
	case tr.Text == "":
		result.State = TranscriptEmpty
		return result, nil
	}

	result.State = TranscriptOK
	result.Text = tr.Text

	if p.Translator != nil && p.ChatLanguage != "" && language != p.ChatLanguage {
		metrics.ProviderCalls.WithLabelValues("translator").Inc()
		translated, err := p.Translator.Translate(ctx, tr.Text, language, p.ChatLanguage)
		if err != nil {
			// Translation is optional; keep the untranslated transcript.
			metrics.ProviderErrors.WithLabelValues("translator", errKind(err)).Inc()
			slog.Warn("translation failed, keeping original transcript", "err", err)
		} else {
			result.Translated = translated
		}
	}

	return result, nil
}

// meanScores aggregates per-frame scores into one score per class by
// arithmetic mean: one classification per submitted clip, not per frame.
// Zero frames yields zero confidences, never NaN.
func meanScores(frames *provider.FrameScores) []provider.LabelScore {
	n := len(frames.Classes)
	sums := make([]float64, n)
	for _, frame := range frames.Frames {
		for i := 0; i < n && i < len(frame); i++ {
			sums[i] += frame[i]
		}
	}

	scores := make([]provider.LabelScore, n)
	count := float64(len(frames.Frames))
	for i, label := range frames.Classes {
		confidence := 0.0
		if count > 0 {
			confidence = sums[i] / count
		}
		scores[i] = provider.LabelScore{Label: label, Confidence: confidence}
	}
	return scores
}

func topScores(scores []provider.LabelScore, k int) []provider.LabelScore {
	sorted := make([]provider.LabelScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

func errKind(err error) string {
	if provider.Unavailable(err) {
		return "unavailable"
	}
	return "other"
}
