package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PositionsIngested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "positions_ingested_total", Help: "Accepted position events"})
	PositionsDropped  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "positions_dropped_total", Help: "Position events dropped by validation"})
	GeofenceAlerts    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "geofence_alerts_total", Help: "Zone-exit alerts broadcast"})
	ETAUpdates        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "eta_updates_total", Help: "ETA updates emitted"})
	ZoneUpdates       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "zone_updates_total", Help: "Successful HQ zone moves"})
	ActorsOnline      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "fleet_tracking", Name: "actors_online", Help: "Live connections"})
	PersistenceErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "persistence_errors_total", Help: "Storage failures during event processing"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleet_tracking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleet_tracking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
