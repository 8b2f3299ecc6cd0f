package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Polls counts snapshot fetches by outcome (ok, error, discarded).
	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qsnap_polls_total",
		Help: "Paper snapshot polls by outcome",
	}, []string{"outcome"})

	// PollDuration tracks snapshot fetch latency.
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qsnap_poll_duration_seconds",
		Help:    "Paper snapshot fetch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
	})

	// Solves counts solve requests by outcome (ok, error, discarded).
	Solves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qsnap_solves_total",
		Help: "Question solve requests by outcome",
	}, []string{"outcome"})

	// Stalls counts workspaces that gave up polling.
	Stalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qsnap_polling_stalls_total",
		Help: "Workspaces that stopped polling because processing stalled",
	})

	// OpenWorkspaces is the number of workspaces currently open.
	OpenWorkspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qsnap_open_workspaces",
		Help: "Currently open paper workspaces",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
