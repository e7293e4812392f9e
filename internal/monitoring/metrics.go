// Package monitoring exposes Prometheus metrics and the operational HTTP
// listener. The ops listener runs on its own port so public traffic and
// scrape traffic never share a socket.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts browse requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bucketd",
			Name:      "requests_total",
			Help:      "Browse requests by classification and status code.",
		},
		[]string{"kind", "code"},
	)

	// RequestDuration observes end-to-end browse request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bucketd",
			Name:      "request_duration_seconds",
			Help:      "Browse request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// SignedURLsIssued counts signed download URLs generated.
	SignedURLsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bucketd",
			Name:      "signed_urls_issued_total",
			Help:      "Signed download URLs generated.",
		},
	)

	// SnapshotAgeSeconds reports the age of the active statistics snapshot.
	SnapshotAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bucketd",
			Name:      "snapshot_age_seconds",
			Help:      "Age of the active folder statistics snapshot.",
		},
	)

	// SnapshotPrefixes reports the prefix count in the active snapshot.
	SnapshotPrefixes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bucketd",
			Name:      "snapshot_prefixes",
			Help:      "Prefixes in the active folder statistics snapshot.",
		},
	)

	// SnapshotReloadsTotal counts snapshot reloads by result.
	SnapshotReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bucketd",
			Name:      "snapshot_reloads_total",
			Help:      "Snapshot reload attempts by result.",
		},
		[]string{"result"},
	)
)

// ObserveSnapshot updates the snapshot gauges after a load or reload.
func ObserveSnapshot(ageSeconds float64, prefixes int) {
	SnapshotAgeSeconds.Set(ageSeconds)
	SnapshotPrefixes.Set(float64(prefixes))
}
