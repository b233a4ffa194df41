package traffic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_lookups_total",
		Help: "Completed traffic lookups by resulting status and where the answer came from",
	}, []string{"status", "source"})

	lookupFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traffic_lookup_failures_total",
		Help: "Failed traffic lookups by cause",
	}, []string{"cause"})

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traffic_browser_session_duration_seconds",
		Help:    "Wall time of a browser session from launch to release",
		Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"outcome"})

	sessionWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "traffic_browser_session_wait_seconds",
		Help:    "Time spent queued for a browser session slot",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	sessionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "traffic_browser_sessions_in_flight",
		Help: "Browser sessions currently running",
	})
)

const (
	sourceBrowser = "browser"
	sourceCache   = "cache"
)
