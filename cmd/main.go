package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"main/internal/bot"
	"main/internal/config"
	"main/internal/pipeline"
	"main/internal/provider"
	"main/internal/session"
	coreconfig "main/tools/pkg/core_config"
)

const artifactTTL = time.Hour

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg := &config.Config{}
	if err := coreconfig.Load(cfg, ""); err != nil {
		log.Panic("Can't load config file", err)
	}
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if len(cfg.Languages) == 0 {
		log.Fatal("LANGUAGES must list at least one language")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("NewBotAPI error: %v", err)
	}

	transcriber := provider.NewTranscriberClient(cfg.TranscriberURL, cfg.TranscriberToken)

	var fallback provider.FallbackIdentifier
	if cfg.ACRAccessKey != "" && cfg.ACRSecret != "" {
		fallback = provider.NewACRClient(cfg.ACRHost, cfg.ACRAccessKey, cfg.ACRSecret)
	} else {
		slog.Warn("ACR credentials not set, song fallback disabled")
	}

	pipes := bot.Pipelines{
		Audio: &pipeline.AudioPipeline{
			Classifier:      provider.NewClassifierClient(cfg.ClassifierURL),
			Transcriber:     transcriber,
			Translator:      provider.NewTranslatorClient(cfg.TranslatorURL),
			TargetRate:      cfg.TargetSampleRate,
			SpeechThreshold: cfg.SpeechProbThreshold,
			TopK:            3,
			ChatLanguage:    cfg.Languages[0],
		},
		Song: &pipeline.SongPipeline{
			Transcriber:         transcriber,
			Searcher:            provider.NewVideoSearchClient(cfg.VideoSearchURL),
			Fingerprinter:       provider.NewFingerprintClient(cfg.FingerprintURL),
			Fallback:            fallback,
			FallbackCalls:       pipeline.NewBudget(cfg.ACRCallBudget),
			MinSeconds:          cfg.MinSongSeconds,
			SimilarityThreshold: 0.4,
		},
		Detect: &pipeline.DetectPipeline{
			Detector:  provider.NewDetectorClient(cfg.DetectorURL),
			Threshold: cfg.DetectionThreshold,
			Labels:    cfg.DetectionLabels,
		},
		Face: &pipeline.FacePipeline{
			Analyzer: provider.NewFaceClient(cfg.FaceURL),
		},
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		slog.Info("metrics listener starting", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
			slog.Error("metrics listener failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := session.NewStore(cfg.Languages[0])
	artifacts := bot.NewArtifacts(artifactTTL)
	b := bot.New(api, cfg, sessions, artifacts, pipes)

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped: %v", err)
	}
	slog.Info("shutting down")
}
