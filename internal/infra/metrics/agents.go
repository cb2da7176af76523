package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		agentsActive,
		agentRunsTotal,
		agentCandidatesTotal,
		agentRunDurationSec,
	)
}

var (
	agentsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agents_active",
			Help: "Number of users with a scheduled agent.",
		},
	)

	agentRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_runs_total",
			Help: "Agent runs by outcome (completed, ineligible, locked, error).",
		},
		[]string{"outcome"},
	)

	agentCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_candidates_total",
			Help: "Job candidates seen by agent runs, by outcome (processed, duplicate, over_quota).",
		},
		[]string{"outcome"},
	)

	agentRunDurationSec = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_run_duration_seconds",
			Help:    "Wall time of completed agent runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)
)

func SetAgentsActive(n int) {
	agentsActive.Set(float64(n))
}

func IncAgentRun(outcome string) {
	agentRunsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddAgentCandidates(outcome string, n int) {
	if n <= 0 {
		return
	}
	agentCandidatesTotal.WithLabelValues(norm(outcome)).Add(float64(n))
}

func ObserveAgentRun(seconds float64) {
	agentRunDurationSec.Observe(seconds)
}
