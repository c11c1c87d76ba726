package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treesync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "treesync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	applied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treesync",
			Subsystem: "replicator",
			Name:      "events_total",
			Help:      "Notifications applied to replicas, by kind and outcome.",
		},
		[]string{"replica", "kind", "outcome"},
	)
	applyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "treesync",
			Subsystem: "replicator",
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying one notification.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"replica", "kind"},
	)
	received = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treesync",
			Subsystem: "receiver",
			Name:      "events_total",
			Help:      "Wire events received, by outcome.",
		},
		[]string{"stream", "outcome"},
	)
	lastSequence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "treesync",
			Subsystem: "receiver",
			Name:      "last_sequence",
			Help:      "Highest sequence number accepted per stream.",
		},
		[]string{"stream"},
	)
	sent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treesync",
			Subsystem: "session",
			Name:      "sent_total",
			Help:      "Wire events sent to peers.",
		},
		[]string{"stream", "kind"},
	)
	acks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treesync",
			Subsystem: "session",
			Name:      "acks_total",
			Help:      "Acks exchanged with peers, by direction and status.",
		},
		[]string{"stream", "direction", "status"},
	)
	pending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "treesync",
			Subsystem: "session",
			Name:      "outbox_pending",
			Help:      "Sent wire events still awaiting an ack.",
		},
		[]string{"stream"},
	)
	journaled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "treesync",
			Subsystem: "journal",
			Name:      "appends_total",
			Help:      "Wire events appended to the journal, by outcome.",
		},
		[]string{"stream", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, applied, applyDuration, received, lastSequence, sent, acks, pending, journaled)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordApply counts one replicator apply. outcome is "applied" or an error code.
func RecordApply(replica, kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	applied.WithLabelValues(replica, kind, outcome).Inc()
	applyDuration.WithLabelValues(replica, kind).Observe(duration.Seconds())
}

func RecordReceive(stream, outcome string, seq int64) {
	RegisterMetrics()
	received.WithLabelValues(stream, outcome).Inc()
	if outcome == "accepted" {
		lastSequence.WithLabelValues(stream).Set(float64(seq))
	}
}

func RecordSend(stream, kind string) {
	RegisterMetrics()
	sent.WithLabelValues(stream, kind).Inc()
}

func RecordAck(stream, direction, status string) {
	RegisterMetrics()
	acks.WithLabelValues(stream, direction, status).Inc()
}

func SetOutboxPending(stream string, n int) {
	RegisterMetrics()
	pending.WithLabelValues(stream).Set(float64(n))
}

func RecordJournalAppend(stream, outcome string) {
	RegisterMetrics()
	journaled.WithLabelValues(stream, outcome).Inc()
}
