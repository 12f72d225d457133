package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	assistantQuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallybook_assistant_questions_total",
			Help: "Assistant questions by final outcome.",
		},
		[]string{"outcome"},
	)
	intentRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallybook_intent_rejections_total",
			Help: "Model intents refused by the validator, by reason.",
		},
		[]string{"reason"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallybook_query_executions_total",
			Help: "Validated intents executed against the ledger.",
		},
		[]string{"entity", "operation", "outcome"},
	)
	queryDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tallybook_query_duration_ms",
			Help:    "Ledger query latency in milliseconds including enrichment.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000},
		},
		[]string{"operation"},
	)
	modelRequestDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tallybook_model_request_duration_ms",
			Help:    "Language model round trip latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"stage", "status"},
	)
	replicaRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallybook_replica_refresh_total",
			Help: "Replica view refresh attempts by entity and outcome.",
		},
		[]string{"entity", "outcome"},
	)
	replicaExportRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallybook_replica_export_runs_total",
			Help: "Replica export runs by outcome.",
		},
		[]string{"outcome"},
	)
	replicaExportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallybook_replica_export_rows_total",
			Help: "Rows written to replica exports by entity.",
		},
		[]string{"entity"},
	)
	replicaLastExportUnix = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tallybook_replica_last_export_timestamp_seconds",
			Help: "Unix time of the last successful replica export.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		assistantQuestionsTotal,
		intentRejectionsTotal,
		queryExecutionsTotal,
		queryDurationMs,
		modelRequestDurationMs,
		replicaRefreshTotal,
		replicaExportRunsTotal,
		replicaExportRowsTotal,
		replicaLastExportUnix,
	)
}

func ObserveQuestion(outcome string) {
	assistantQuestionsTotal.WithLabelValues(outcome).Inc()
}

func IncrementIntentRejection(reason string) {
	intentRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveQueryExecution(entity, operation, outcome string, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(entity, operation, outcome).Inc()
	queryDurationMs.WithLabelValues(operation).Observe(float64(elapsed.Milliseconds()))
}

func ObserveModelRequest(stage string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelRequestDurationMs.WithLabelValues(stage, status).Observe(float64(elapsed.Milliseconds()))
}

func RecordReplicaRefresh(entity, outcome string) {
	replicaRefreshTotal.WithLabelValues(entity, outcome).Inc()
}

func ObserveReplicaExport(outcome string, rows map[string]int64, finishedAt time.Time) {
	replicaExportRunsTotal.WithLabelValues(outcome).Inc()
	for entity, count := range rows {
		if count > 0 {
			replicaExportRowsTotal.WithLabelValues(entity).Add(float64(count))
		}
	}
	if outcome == "success" {
		replicaLastExportUnix.Set(float64(finishedAt.Unix()))
	}
}
