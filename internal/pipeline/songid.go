package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"main/internal/audio"
	"main/internal/metrics"
	"main/internal/provider"
)

// Resolution is the terminal state of a song identification run. Every state
// must stay distinguishable to the caller.
type Resolution int

const (
	// InsufficientDuration: the clip is too short; no provider was called.
	InsufficientDuration Resolution = iota
	// ResolvedDual: both strategies produced a title; fingerprint wins.
	ResolvedDual
	// ResolvedSingleFingerprint: only the melody match produced a title.
	ResolvedSingleFingerprint
	// ResolvedSingleVoice: only the voice search produced a title.
	ResolvedSingleVoice
	// ResolvedFallback: the paid fallback identified the song.
	ResolvedFallback
	// Unresolved: every strategy came up empty.
	Unresolved
)

// SongResult is the outcome of identify-song. Candidate is nil for
// InsufficientDuration and Unresolved.
type SongResult struct {
	Resolution Resolution
	Candidate  *provider.SongCandidate
	// Divergent is set on ResolvedDual when the two titles disagreed; the
	// fingerprint title is still authoritative for audio.
	Divergent bool
	// BudgetExhausted is set on Unresolved when the fallback was wanted but
	// its call budget had run out.
	BudgetExhausted bool
}

// Budget tracks the remaining calls allowed to the paid fallback.
type Budget struct {
	mu        sync.Mutex
	remaining int
}

func NewBudget(calls int) *Budget {
	metrics.FallbackBudgetRemaining.Set(float64(calls))
	return &Budget{remaining: calls}
}

// Take consumes one call if any remain.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	metrics.FallbackBudgetRemaining.Set(float64(b.remaining))
	return true
}

func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// SongPipeline runs two independent identification strategies and reconciles
// them, escalating to the paid fallback only when both come up empty.
type SongPipeline struct {
	Transcriber   provider.SpeechTranscriber
	Searcher      provider.VideoSearcher
	Fingerprinter provider.SongFingerprinter
	Fallback      provider.FallbackIdentifier
	FallbackCalls *Budget

	// MinSeconds is the minimum clip duration; shorter clips are rejected
	// before any provider is called.
	MinSeconds float64
	// SimilarityThreshold is the title-similarity ratio above which the two
	// strategies are considered to agree.
	SimilarityThreshold float64
}

// Run identifies the song in the WAV at wavPath. A provider failure in any
// one strategy is treated as that strategy returning no result; the pipeline
// proceeds.
func (p *SongPipeline) Run(ctx context.Context, wavPath, language string) (*SongResult, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.WithLabelValues("songid").Observe(time.Since(start).Seconds())
	}()

	clip, err := audio.DecodeWAV(wavPath)
	if err != nil {
		return nil, err
	}
	if clip.Duration() < p.MinSeconds {
		return &SongResult{Resolution: InsufficientDuration}, nil
	}

	voice := p.voiceSearch(ctx, wavPath, language)
	melody := p.fingerprint(ctx, wavPath)

	switch {
	case voice != nil && melody != nil:
		ratio := titleSimilarity(voice.Title, melody.Title)
		divergent := ratio <= p.SimilarityThreshold
		// The melody identifier is authoritative for audio; the voice search
		// only corroborates. When the two agree, its video link is safe to
		// attach to the winning candidate.
		if !divergent && melody.URL == "" {
			melody.URL = voice.URL
		}
		return &SongResult{
			Resolution: ResolvedDual,
			Candidate:  melody,
			Divergent:  divergent,
		}, nil
	case melody != nil:
		return &SongResult{Resolution: ResolvedSingleFingerprint, Candidate: melody}, nil
	case voice != nil:
		return &SongResult{Resolution: ResolvedSingleVoice, Candidate: voice}, nil
	}

	return p.escalate(ctx, wavPath), nil
}

// voiceSearch transcribes the clip and takes the most-viewed video hit for
// the transcript as a title guess.
func (p *SongPipeline) voiceSearch(ctx context.Context, wavPath, language string) *provider.SongCandidate {
	metrics.ProviderCalls.WithLabelValues("transcriber").Inc()
	tr, err := p.Transcriber.Transcribe(ctx, wavPath, language)
	if err != nil || tr.Text == "" {
		if err != nil {
			slog.Debug("song voice-search transcription failed", "err", err)
		}
		return nil
	}

	metrics.ProviderCalls.WithLabelValues("video-search").Inc()
	hits, err := p.Searcher.Search(ctx, tr.Text, 3)
	if err != nil || len(hits) == 0 {
		if err != nil {
			slog.Debug("song voice-search lookup failed", "err", err)
		}
		return nil
	}

	best := hits[0]
	for _, h := range hits[1:] {
		if h.Views > best.Views {
			best = h
		}
	}
	return &provider.SongCandidate{Title: best.Title, URL: best.URL, Source: provider.SourceVoiceSearch}
}

func (p *SongPipeline) fingerprint(ctx context.Context, wavPath string) *provider.SongCandidate {
	metrics.ProviderCalls.WithLabelValues("fingerprint").Inc()
	candidate, err := p.Fingerprinter.Match(ctx, wavPath)
	if err != nil {
		slog.Debug("song fingerprint match failed", "err", err)
		return nil
	}
	return candidate
}

// escalate calls the paid fallback, guarded by the call budget. It is only
// reached when both free strategies returned nothing.
func (p *SongPipeline) escalate(ctx context.Context, wavPath string) *SongResult {
	if p.Fallback == nil {
		return &SongResult{Resolution: Unresolved}
	}
	if !p.FallbackCalls.Take() {
		slog.Warn("song fallback skipped, call budget exhausted")
		return &SongResult{Resolution: Unresolved, BudgetExhausted: true}
	}

	metrics.ProviderCalls.WithLabelValues("acrcloud").Inc()
	candidate, err := p.Fallback.Identify(ctx, wavPath)
	if errors.Is(err, provider.ErrBudgetExhausted) {
		// The remote side can run dry before the local counter does.
		slog.Warn("song fallback rejected, remote quota exhausted")
		return &SongResult{Resolution: Unresolved, BudgetExhausted: true}
	}
	if err != nil {
		slog.Debug("song fallback failed", "err", err)
		return &SongResult{Resolution: Unresolved}
	}
	return &SongResult{Resolution: ResolvedFallback, Candidate: candidate}
}

// titleSimilarity is a case-insensitive sequence-match ratio over the two
// titles' characters.
func titleSimilarity(a, b string) float64 {
	left := strings.Split(strings.ToLower(a), "")
	right := strings.Split(strings.ToLower(b), "")
	return difflib.NewMatcher(left, right).Ratio()
}
