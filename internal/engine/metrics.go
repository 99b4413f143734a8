package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	// taskEnqueued counts tasks accepted into the delivery queue by intent.
	taskEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_tasks_enqueued_total",
			Help: "Total delivery tasks accepted into the queue.",
		},
		[]string{"message_type"},
	)

	// attemptOutcomes counts send attempts by how they ended. "result" is
	// one of delivered, retryable, permanent; "code" is the taxonomy code
	// for failures and "" for deliveries.
	attemptOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Total delivery attempts by outcome.",
		},
		[]string{"result", "code"},
	)

	// sendLat records platform send latency. Labels are deliberately
	// omitted: per-recipient or per-code histograms would explode
	// cardinality without adding signal.
	sendLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_send_duration_seconds",
			Help:    "Duration of platform send calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// queueInFlight gauges tasks currently held by workers.
	queueInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_tasks_inflight",
			Help: "Delivery tasks currently being attempted.",
		},
	)
)

func init() {
	prometheus.MustRegister(taskEnqueued, attemptOutcomes, sendLat, queueInFlight)
}
