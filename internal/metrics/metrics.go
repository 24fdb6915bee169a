// Package metrics exposes Prometheus instrumentation for the event pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagesense"

var (
	// EventsIngested counts accepted beacons by event type.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Accepted beacon events by type.",
	}, []string{"type"})

	// EventsRejected counts rejected beacons by reason.
	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rejected_total",
		Help:      "Rejected beacon requests by reason.",
	}, []string{"reason"})

	// DedupHits counts dedup collisions per layer (coarse, fine).
	DedupHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "dedup_hits_total",
		Help:      "Duplicate beacons suppressed per dedup layer.",
	}, []string{"layer"})

	// SuspiciousEvents counts events annotated by the bot scorer, by reason.
	SuspiciousEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "suspicious_total",
		Help:      "Events flagged suspicious by scoring reason.",
	}, []string{"reason"})

	// PipelineDuration observes end-to-end hot path latency.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Hot path processing duration per event.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
