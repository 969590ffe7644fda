package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	feedSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "biastrack",
		Subsystem: "feed",
		Name:      "live_items",
		Help:      "Number of items currently held by the live feed reducer.",
	})

	feedAggregatedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "biastrack",
		Subsystem: "feed",
		Name:      "last_aggregation_items",
		Help:      "Item count of the most recent full feed aggregation.",
	})

	signalsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biastrack",
		Subsystem: "signals",
		Name:      "generated_total",
		Help:      "Number of synthetic activity records generated, by kind.",
	}, []string{"kind"})

	challengesCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "biastrack",
		Subsystem: "challenges",
		Name:      "completed_total",
		Help:      "Number of challenge updates that crossed the completion threshold.",
	})
)

func init() {
	prometheus.MustRegister(feedSizeGauge, feedAggregatedGauge, signalsCounter, challengesCompletedCounter)
}

// RecordFeedSize updates the live feed size gauge.
func RecordFeedSize(n int) {
	feedSizeGauge.Set(float64(n))
}

// RecordFeedAggregated records the size of a full aggregation pass.
func RecordFeedAggregated(n int) {
	feedAggregatedGauge.Set(float64(n))
}

// RecordSignalGenerated counts one generated record of the given kind.
func RecordSignalGenerated(kind string) {
	signalsCounter.WithLabelValues(kind).Inc()
}

// RecordChallengeCompleted counts a completion transition.
func RecordChallengeCompleted() {
	challengesCompletedCounter.Inc()
}
