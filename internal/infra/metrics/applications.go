package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(applicationsTotal, stageFailuresTotal)
}

var (
	applicationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_total",
			Help: "Application status transitions recorded, by resulting status.",
		},
		[]string{"status"},
	)

	stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_stage_failures_total",
			Help: "Failed application log entries by pipeline action.",
		},
		[]string{"action"},
	)
)

func IncApplication(status string) {
	applicationsTotal.WithLabelValues(norm(status)).Inc()
}

func IncStageFailure(action string) {
	stageFailuresTotal.WithLabelValues(norm(action)).Inc()
}
