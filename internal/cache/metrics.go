package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// saveDuration tracks the wall-clock duration of one whole DTO
	// fan-out across every interested cache.
	saveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oddsfeed_cache_save_duration_seconds",
		Help:    "Duration of one DTO fan-out across all interested caches",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// savesTotal counts per-cache save outcomes of the fan-out.
	savesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsfeed_cache_saves_total",
		Help: "DTO saves per cache and outcome",
	}, []string{"cache", "result"})

	// dispatchDroppedTotal counts DTOs whose type no cache declared
	// interest in.
	dispatchDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oddsfeed_cache_dispatch_dropped_total",
		Help: "DTOs dropped because no registered cache accepts their type",
	})
)

const (
	saveResultSaved   = "saved"
	saveResultSkipped = "skipped"
	saveResultError   = "error"
)
