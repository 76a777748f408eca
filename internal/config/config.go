package config

type Config struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`

	// Provider endpoints. Each is an HTTP sidecar or remote API.
	ClassifierURL  string `envconfig:"CLASSIFIER_URL" default:"http://localhost:9101"`
	TranscriberURL string `envconfig:"TRANSCRIBER_URL" default:"http://localhost:9102"`
	DetectorURL    string `envconfig:"DETECTOR_URL" default:"http://localhost:9103"`
	FingerprintURL string `envconfig:"FINGERPRINT_URL" default:"http://localhost:9104"`
	VideoSearchURL string `envconfig:"VIDEO_SEARCH_URL" default:"http://localhost:9105"`
	FaceURL        string `envconfig:"FACE_URL" default:"http://localhost:9106"`
	TranslatorURL  string `envconfig:"TRANSLATOR_URL" default:"http://localhost:9107"`

	TranscriberToken string `envconfig:"TRANSCRIBER_API_TOKEN"`

	// ACRCloud paid fallback for song identification.
	ACRHost       string `envconfig:"ACR_HOST" default:"http://identify-us-west-2.acrcloud.com"`
	ACRAccessKey  string `envconfig:"ACR_ACCESS_KEY"`
	ACRSecret     string `envconfig:"ACR_ACCESS_SECRET"`
	ACRCallBudget int    `envconfig:"ACR_CALL_BUDGET" default:"100"`

	// Pipeline tuning.
	DetectionThreshold  float64 `envconfig:"DETECTION_THRESHOLD" default:"0.3"`
	SpeechProbThreshold float64 `envconfig:"SPEECH_PROB_THRESHOLD" default:"0.15"`
	TargetSampleRate    int     `envconfig:"TARGET_SAMPLE_RATE" default:"16000"`
	MinSongSeconds      float64 `envconfig:"MIN_SONG_SECONDS" default:"12"`

	// Transcription languages offered in the /language menu. The first one
	// is the default for new sessions.
	Languages []string `envconfig:"LANGUAGES" default:"pt,en,es,fr,de,ru"`

	// Optional detector label translations as "english:translated" pairs.
	// Unlisted labels pass through unchanged.
	DetectionLabels map[string]string `envconfig:"DETECTION_LABELS"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}
