package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})
	statusChangedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "last_status_change_timestamp_seconds",
		Help:      "Unix timestamp of the most recent committed status transition.",
	})
	transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "transitions",
		Name:      "requests_total",
		Help:      "Transition requests grouped by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, statusChangedGauge, transitionCounter)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordStatusChanged updates the transition watermark gauge.
func RecordStatusChanged(ts time.Time) {
	if ts.IsZero() {
		return
	}
	statusChangedGauge.Set(float64(ts.Unix()))
}

// RecordTransitionOutcome counts a transition request result. Outcome is one
// of ok, validation, authorization, storage.
func RecordTransitionOutcome(outcome string) {
	transitionCounter.WithLabelValues(outcome).Inc()
}
