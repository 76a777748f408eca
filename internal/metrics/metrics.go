package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Inbound updates by routed target",
	}, []string{"target"})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_calls_total",
		Help: "Calls issued to external capability providers",
	}, []string{"provider"})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_errors_total",
		Help: "Provider failures by provider and kind",
	}, []string{"provider", "kind"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_duration_seconds",
		Help:    "End-to-end pipeline latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"pipeline"})

	TranscriptionsGated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcriptions_gated_total",
		Help: "Speech-gate decisions for submitted clips",
	}, []string{"decision"})

	FallbackBudgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songid_fallback_budget_remaining",
		Help: "Paid song-identification calls left in the configured budget",
	})

	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_live",
		Help: "Sessions currently held in the store",
	})
)
