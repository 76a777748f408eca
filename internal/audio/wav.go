// Package audio prepares downloaded media for the providers: WAV decoding,
// mono mixdown, the resample decision, and scoped temp files.
package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"main/internal/provider"
)

// Clip is a decoded audio clip, mixed down to mono.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// DecodeWAV reads a PCM WAV file into a mono float32 clip normalized to
// [-1, 1]. An unreadable or non-WAV file is a DecodeError; nothing downstream
// runs after that.
func DecodeWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &provider.DecodeError{Media: "audio", Err: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &provider.DecodeError{Media: "audio", Err: fmt.Errorf("not a valid WAV file: %s", path)}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &provider.DecodeError{Media: "audio", Err: err}
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 || len(buf.Data) == 0 {
		return nil, &provider.DecodeError{Media: "audio", Err: fmt.Errorf("empty PCM payload: %s", path)}
	}

	channels := buf.Format.NumChannels
	scale := float32(int(1) << (dec.BitDepth - 1))
	frames := len(buf.Data) / channels

	// Stereo input is averaged across channels; the classifier wants mono.
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float32(channels)
	}

	return &Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// NeedsResample reports whether the clip must be resampled for a consumer
// that requires targetRate.
func (c *Clip) NeedsResample(targetRate int) bool {
	return c.SampleRate != targetRate
}

// Resampled returns the clip at targetRate, using linear interpolation. The
// clip is returned unchanged when the rates already match.
func (c *Clip) Resampled(targetRate int) *Clip {
	if !c.NeedsResample(targetRate) {
		return c
	}

	ratio := float64(c.SampleRate) / float64(targetRate)
	outLen := int(float64(len(c.Samples)) / ratio)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx+1 >= len(c.Samples) {
			out[i] = c.Samples[len(c.Samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = c.Samples[idx]*(1-frac) + c.Samples[idx+1]*frac
	}

	return &Clip{Samples: out, SampleRate: targetRate}
}
