package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(browserSessionsOpen, browserNavigationMs)
}

var (
	browserSessionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "browser_sessions_open",
			Help: "Browser sessions currently open, per engine.",
		},
		[]string{"engine"},
	)

	browserNavigationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "browser_navigation_latency_ms",
			Help:    "Page navigation latency in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		},
		[]string{"engine", "success"},
	)
)

func BrowserSessionOpened(engine string) {
	browserSessionsOpen.WithLabelValues(norm(engine)).Inc()
}

func BrowserSessionClosed(engine string) {
	browserSessionsOpen.WithLabelValues(norm(engine)).Dec()
}

func ObserveNavigation(engine string, latencyMs int64, success bool) {
	browserNavigationMs.WithLabelValues(norm(engine), strconv.FormatBool(success)).Observe(float64(latencyMs))
}
