package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReportsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safemap_reports_created_total",
		Help: "Total number of reports created",
	}, []string{"type"})
	ReportsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safemap_reports_deleted_total",
		Help: "Total number of reports deleted",
	})
	SnapshotsDeliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safemap_snapshots_delivered_total",
		Help: "Total number of feed snapshots delivered",
	})
	SnapshotSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safemap_snapshot_size",
		Help: "Number of reports in the latest snapshot",
	})
	FeedErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safemap_feed_errors_total",
		Help: "Total number of non-fatal feed subscription errors",
	})
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "safemap_ws_connected_clients",
		Help: "Currently connected WebSocket clients",
	})
	PlacesRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safemap_places_requests_total",
		Help: "Total nearby search requests to the places provider",
	})
	PlacesFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "safemap_places_failures_total",
		Help: "Total failed nearby search requests",
	})
	LocatorLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "safemap_locator_lookups_total",
		Help: "Nearest-facility lookups by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		ReportsCreatedTotal,
		ReportsDeletedTotal,
		SnapshotsDeliveredTotal,
		SnapshotSize,
		FeedErrorsTotal,
		ConnectedClients,
		PlacesRequestsTotal,
		PlacesFailuresTotal,
		LocatorLookupsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
