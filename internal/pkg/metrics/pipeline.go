package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tracesIngested tracks ingested traces
	tracesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentgauge_traces_ingested_total",
			Help: "Total number of traces ingested",
		},
	)

	// spansIngested tracks ingested spans
	spansIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentgauge_spans_ingested_total",
			Help: "Total number of spans ingested",
		},
	)

	// logsIngested tracks ingested log entries
	logsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentgauge_logs_ingested_total",
			Help: "Total number of log entries ingested",
		},
	)

	// capturesTotal tracks capture-mode agent runs promoted into test cases
	capturesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentgauge_eval_captures_total",
			Help: "Total number of captured eval test cases",
		},
	)

	// evalResults tracks replay eval case outcomes
	evalResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgauge_eval_results_total",
			Help: "Total number of eval case results by outcome",
		},
		[]string{"outcome"},
	)

	// replayLookups tracks replay mock-map lookups
	replayLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentgauge_replay_lookups_total",
			Help: "Total number of replay tool lookups by result",
		},
		[]string{"result"},
	)
)

// RecordIngestedBatch records counters for one accepted ingestion batch
func RecordIngestedBatch(traces, spans, logs int) {
	tracesIngested.Add(float64(traces))
	spansIngested.Add(float64(spans))
	logsIngested.Add(float64(logs))
}

// RecordCapture records one captured test case
func RecordCapture() {
	capturesTotal.Inc()
}

// RecordEvalResult records one replay eval case outcome
func RecordEvalResult(passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	evalResults.WithLabelValues(outcome).Inc()
}

// RecordReplayLookup records a replay mock-map lookup
func RecordReplayLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	replayLookups.WithLabelValues(result).Inc()
}
