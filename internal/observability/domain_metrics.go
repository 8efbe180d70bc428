package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_translations_total",
			Help: "Total number of natural language to SQL translations by outcome.",
		},
		[]string{"outcome"},
	)
	translationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_translation_latency_ms",
			Help:    "Upstream model translation latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 20000},
		},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_executions_total",
			Help: "Total number of SQL executions by outcome.",
		},
		[]string{"outcome"},
	)
	executionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_execution_latency_ms",
			Help:    "SQL execution latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 30000},
		},
	)
	unsafeStatementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_unsafe_statements_rejected_total",
			Help: "Total number of statements rejected by the read-only guard.",
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlpilot_active_sessions",
			Help: "Current count of live query sessions.",
		},
	)
	resultExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_result_exports_total",
			Help: "Total number of result exports by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		translationsTotal,
		translationLatencyMs,
		executionsTotal,
		executionLatencyMs,
		unsafeStatementsTotal,
		activeSessions,
		resultExportsTotal,
	)
}

func ObserveTranslation(outcome string, elapsed time.Duration) {
	translationsTotal.WithLabelValues(outcome).Inc()
	translationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecution(outcome string, elapsed time.Duration) {
	executionsTotal.WithLabelValues(outcome).Inc()
	executionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementUnsafeStatement() {
	unsafeStatementsTotal.Inc()
}

func SetActiveSessions(count int64) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

func ObserveExport(outcome string) {
	resultExportsTotal.WithLabelValues(outcome).Inc()
}
