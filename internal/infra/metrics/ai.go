package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		aiReplyFallbacks,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000},
		},
		[]string{"provider", "model", "success"},
	)

	aiReplyFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_reply_fallbacks_total",
			Help: "Analyses replaced by their safe default after a failed call or unparsable reply.",
		},
		[]string{"analysis"},
	)
)

func ObserveChatUsage(provider, model string, tokensIn, tokensOut int, latencyMs int64, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

// IncAnalysisFallback counts a "match" or "form" analysis that fell back to its default.
func IncAnalysisFallback(analysis string) {
	aiReplyFallbacks.WithLabelValues(norm(analysis)).Inc()
}
