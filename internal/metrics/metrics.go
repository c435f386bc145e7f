// Package metrics holds the Prometheus collectors exported by wsedge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions        = promauto.NewGauge(prometheus.GaugeOpts{Name: "wsedge_active_sessions", Help: "Tunnel sessions currently running"})
	SessionsTotal         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wsedge_sessions_total", Help: "Finished tunnel sessions by outcome"}, []string{"outcome"})
	BytesRelayedTotal     = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wsedge_bytes_relayed_total", Help: "Bytes relayed by direction"}, []string{"direction"})
	SessionDuration       = promauto.NewHistogram(prometheus.HistogramOpts{Name: "wsedge_session_duration_seconds", Help: "Tunnel session lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 16)})
	DirectoryLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wsedge_directory_lookups_total", Help: "Alias directory lookups by source and result"}, []string{"source", "result"})
	StaticRepliesTotal    = promauto.NewCounter(prometheus.CounterOpts{Name: "wsedge_static_replies_total", Help: "Tunnel path requests answered without an upgrade"})
)
