package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dalOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wotmesh",
		Subsystem: "dal",
		Name:      "operations_total",
		Help:      "Count of DAL operations.",
	}, []string{"operation", "status"})

	dalOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wotmesh",
		Subsystem: "dal",
		Name:      "operation_duration_seconds",
		Help:      "Duration of DAL operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})

	warehouseOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wotmesh",
		Subsystem: "warehouse",
		Name:      "operations_total",
		Help:      "Count of stats warehouse operations.",
	}, []string{"operation", "currency", "status"})

	warehouseOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wotmesh",
		Subsystem: "warehouse",
		Name:      "operation_duration_seconds",
		Help:      "Duration of stats warehouse operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "currency", "status"})
)

// DAL observes badger repository operations.
type DAL struct{}

// Observe records one DAL operation.
func (DAL) Observe(operation string, err error, started time.Time) {
	dalOperationsTotal.WithLabelValues(operation, status(err)).Inc()
	dalOperationDuration.WithLabelValues(operation, status(err)).
		Observe(time.Since(started).Seconds())
}

// Warehouse observes stats warehouse operations.
type Warehouse struct{}

// Observe records one warehouse operation.
func (Warehouse) Observe(operation, currency string, err error, started time.Time) {
	if currency == "" {
		currency = "unknown"
	}
	warehouseOperationsTotal.WithLabelValues(operation, currency, status(err)).Inc()
	warehouseOperationDuration.WithLabelValues(operation, currency, status(err)).
		Observe(time.Since(started).Seconds())
}
