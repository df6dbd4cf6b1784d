package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "party_rides"

var (
	LedgerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ledger_operations_total", Help: "Ledger operations by operation and outcome"},
		[]string{"op", "outcome"},
	)
	LedgerConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ledger_version_conflicts_total", Help: "Optimistic version conflicts retried by the ledger"},
		[]string{"op"},
	)
	CancelFanoutFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "cancel_fanout_failures_total", Help: "Passenger request re-creations that failed after an offer cancellation"})

	GeocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "geocode_lookups_total", Help: "Geocode resolutions by result"},
		[]string{"result"},
	)
	GeocodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_provider_latency_seconds", Help: "Latency of geocoding provider calls"})

	MatchCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "match_candidates",
		Help:      "Number of requests returned per match pass",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "match_latency_seconds", Help: "Match latency seconds"})

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_total", Help: "Notifications handed to the notifier by reason and outcome"},
		[]string{"reason", "outcome"},
	)
	WSSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ws_sessions", Help: "Number of connected websocket sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
