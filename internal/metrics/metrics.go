package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry so the /metrics endpoint only exposes
// what this service reports.
type Collector struct {
	reg *prometheus.Registry

	RoutesStarted    prometheus.Counter
	RoutesEnded      prometheus.Counter
	FixesIngested    prometheus.Counter
	PickupsRecorded  prometheus.Counter
	DuplicatePickups prometheus.Counter
	RejectedWrites   *prometheus.CounterVec // reason label: not_active|invalid_coordinate|unknown_fix|not_found

	ActiveRoutes prometheus.Gauge
	WSClients    prometheus.Gauge

	IngestDuration  prometheus.Histogram
	MapViewDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RoutesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schoolbus_routes_started_total",
			Help: "Total tracking sessions started.",
		}),
		RoutesEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schoolbus_routes_ended_total",
			Help: "Total tracking sessions ended.",
		}),
		FixesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schoolbus_fixes_ingested_total",
			Help: "Total GPS fixes appended to trails.",
		}),
		PickupsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schoolbus_pickups_recorded_total",
			Help: "Total student pickups recorded.",
		}),
		DuplicatePickups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schoolbus_duplicate_pickups_total",
			Help: "Pickup attempts rejected because the student was already picked up.",
		}),
		RejectedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolbus_rejected_writes_total",
			Help: "Mutations rejected by validation or the route lifecycle.",
		}, []string{"reason"}),
		ActiveRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schoolbus_active_routes",
			Help: "Number of routes currently accepting fixes.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schoolbus_ws_clients",
			Help: "Number of connected websocket watchers.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schoolbus_ingest_duration_seconds",
			Help:    "Duration of fix ingestion including persistence.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		MapViewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schoolbus_map_view_duration_seconds",
			Help:    "Duration of map view computation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	reg.MustRegister(
		c.RoutesStarted, c.RoutesEnded,
		c.FixesIngested, c.PickupsRecorded, c.DuplicatePickups,
		c.RejectedWrites,
		c.ActiveRoutes, c.WSClients,
		c.IngestDuration, c.MapViewDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
