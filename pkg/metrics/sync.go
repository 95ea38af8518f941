package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Action outcomes recorded by the sync engine.
const (
	OutcomeApplied = "applied"
	OutcomeRetry   = "retry"
	OutcomeEvicted = "evicted"
)

// SyncMetrics records drain passes, per-action outcomes and reachability.
type SyncMetrics struct {
	drainDuration *prometheus.HistogramVec
	actions       *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	online        prometheus.Gauge
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	drainDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_drain_duration_seconds",
		Help:    "Duration of queue drain passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_actions_total",
		Help: "Queued actions replayed, by kind and outcome.",
	}, []string{"kind", "outcome"})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_evictions_total",
		Help: "Queued actions abandoned, by kind and reason.",
	}, []string{"kind", "reason"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Actions waiting in the offline queue.",
	})
	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reachability_online",
		Help: "1 when the remote backend is confirmed reachable.",
	})
	reg.MustRegister(drainDuration, actions, evictions, queueDepth, online)
	return &SyncMetrics{
		drainDuration: drainDuration,
		actions:       actions,
		evictions:     evictions,
		queueDepth:    queueDepth,
		online:        online,
	}
}

// ObserveDrain records how long a drain pass took. result is "ok" or "partial".
func (m *SyncMetrics) ObserveDrain(result string, duration time.Duration) {
	if m == nil || m.drainDuration == nil {
		return
	}
	m.drainDuration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// IncAction counts one replay outcome for kind.
func (m *SyncMetrics) IncAction(kind, outcome string) {
	if m == nil || m.actions == nil {
		return
	}
	m.actions.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncEviction counts one abandoned action.
func (m *SyncMetrics) IncEviction(kind, reason string) {
	if m == nil || m.evictions == nil {
		return
	}
	m.evictions.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

// SetQueueDepth publishes the current number of pending actions.
func (m *SyncMetrics) SetQueueDepth(n int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// SetOnline publishes the reachability state.
func (m *SyncMetrics) SetOnline(online bool) {
	if m == nil || m.online == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
