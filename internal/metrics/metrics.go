package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HubRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubgate_hub_requests_total",
			Help: "Requests sent to the hub, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hubgate_sync_duration_seconds",
			Help:    "Duration of device synchronizations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubgate_cache_lookups_total",
			Help: "Sync cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)

	Commands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubgate_commands_total",
			Help: "Dispatched device commands by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	HistorySources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubgate_history_requests_total",
			Help: "History requests by the source that answered them",
		},
		[]string{"source"},
	)
)

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveSync(mode string, start time.Time, err error) {
	SyncDuration.WithLabelValues(mode, Outcome(err)).Observe(time.Since(start).Seconds())
}
