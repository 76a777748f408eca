// Package provider defines the narrow contracts for the external capability
// providers (classification, transcription, detection, song identification,
// face analysis, translation) and the HTTP adapters that implement them.
package provider

import "context"

// LabelScore is one (class label, confidence) pair. Confidence is in [0,1].
type LabelScore struct {
	Label      string
	Confidence float64
}

// FrameScores holds the raw per-frame class scores of a sound classifier run,
// before any aggregation. Classes[i] names the class scored at Frames[*][i].
type FrameScores struct {
	Classes []string    `json:"classes"`
	Frames  [][]float64 `json:"frames"`
}

// Transcription is the output of a speech transcriber. An empty Text with a
// nil error means the provider ran but recognized no speech.
type Transcription struct {
	Text     string
	Language string
	Source   string
}

// SongSource tells which strategy produced a candidate.
type SongSource string

const (
	SourceVoiceSearch  SongSource = "voice-search"
	SourceMelodyMatch  SongSource = "melody-match"
	SourcePaidFallback SongSource = "paid-fallback"
)

// SongCandidate is an identified song. Artist may be empty; these providers
// rarely report a confidence, so none is carried. URL, when present, points
// at the video the voice search matched.
type SongCandidate struct {
	Title  string
	Artist string
	URL    string
	Source SongSource
}

// Box is one object detection in pixel coordinates of the source image.
type Box struct {
	Label      string
	Confidence float64
	X1, Y1     int
	X2, Y2     int
}

// VideoHit is one result from the video-index search.
type VideoHit struct {
	URL   string
	Title string
	Views int64
}

// Face is the result of a face analysis: estimated age, dominant gender and
// the face region in the source image.
type Face struct {
	Age    int
	Gender string
	Region Box
}

// SoundClassifier scores an audio clip against a fixed class map, one score
// vector per analysis frame.
type SoundClassifier interface {
	Classify(ctx context.Context, samples []float32, sampleRate int) (*FrameScores, error)
}

// SpeechTranscriber converts a WAV file into text in the requested language.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, wavPath string, language string) (*Transcription, error)
}

// ObjectDetector finds objects in an image.
type ObjectDetector interface {
	Detect(ctx context.Context, imagePath string) ([]Box, error)
}

// SongFingerprinter matches a clip's melody against a fingerprint index.
type SongFingerprinter interface {
	Match(ctx context.Context, wavPath string) (*SongCandidate, error)
}

// VideoSearcher searches a video index by free text.
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]VideoHit, error)
}

// FallbackIdentifier is the paid, rate-limited song identification service.
// It must never be called speculatively.
type FallbackIdentifier interface {
	Identify(ctx context.Context, wavPath string) (*SongCandidate, error)
}

// FaceAnalyzer estimates age and gender for the most prominent face.
type FaceAnalyzer interface {
	Analyze(ctx context.Context, imagePath string) (*Face, error)
}

// Translator translates text between language tags.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}
