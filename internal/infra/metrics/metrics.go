// Package metrics provides Prometheus metrics for the embedding service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts embed requests by endpoint and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedding",
			Name:      "requests_total",
			Help:      "Total number of embed requests",
		},
		[]string{"endpoint", "outcome"},
	)

	// InferenceDuration measures time spent inside the model per encode call.
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "embedding",
			Name:      "inference_duration_seconds",
			Help:      "Duration of encoder calls in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	// QueueWait measures how long a caller waited for a worker slot.
	QueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "embedding",
			Name:      "queue_wait_seconds",
			Help:      "Time spent waiting for an inference worker in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BatchSize observes how many texts reach the encoder per call.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "embedding",
			Name:      "batch_size",
			Help:      "Distribution of texts per encoder call",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	// QueueDepth tracks inference jobs waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "embedding",
			Name:      "inference_queue_depth",
			Help:      "Number of inference jobs waiting for a worker",
		},
	)

	// CacheLookups counts embedding cache hits and misses.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	// ModelState exposes the readiness state (0 = loading, 1 = ready, 2 = failed).
	ModelState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "embedding",
			Name:      "model_state",
			Help:      "Encoder readiness state (0 = loading, 1 = ready, 2 = failed)",
		},
	)
)

// RecordRequest records the outcome of an embed request.
func RecordRequest(endpoint, outcome string) {
	RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordInference records a completed encoder call.
func RecordInference(status string, batchSize int, duration float64) {
	InferenceDuration.WithLabelValues(status).Observe(duration)
	BatchSize.Observe(float64(batchSize))
}

// RecordQueueWait records the time a job spent queued.
func RecordQueueWait(seconds float64) {
	QueueWait.Observe(seconds)
}

// RecordCacheHits adds hit and miss counts from a single lookup pass.
func RecordCacheHits(hits, misses int) {
	if hits > 0 {
		CacheLookups.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		CacheLookups.WithLabelValues("miss").Add(float64(misses))
	}
}

// SetQueueDepth publishes the current inference queue length.
func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

// SetModelState publishes the readiness state.
func SetModelState(state int) {
	ModelState.Set(float64(state))
}
