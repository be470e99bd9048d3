package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	queryKindFixed = "fixed"
	queryKindAdHoc = "adhoc"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_gateway_queries_total",
			Help: "Queries handled by the gateway, by query kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouse_gateway_query_duration_seconds",
			Help:    "Time spent executing queries against the warehouse",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"kind"},
	)
	rowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouse_gateway_rows_returned",
			Help:    "Rows returned per query",
			Buckets: []float64{0, 1, 10, 100, 500, 1000, 2500, 5000},
		},
		[]string{"kind"},
	)
	endpointResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_gateway_endpoint_resolutions_total",
			Help: "Warehouse discovery attempts, by result",
		},
		[]string{"result"},
	)
	connectionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_gateway_connections_opened_total",
			Help: "Warehouse session open attempts, by result",
		},
		[]string{"result"},
	)
)

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case KindRejectedStatement:
		return "rejected"
	case KindNoEndpointAvailable, KindConnectionFailed:
		return "unavailable"
	default:
		return "error"
	}
}
