// Package metrics holds the Prometheus collectors for the store layer. Collectors are
// registered on the default registry; the embedding process decides how to expose them.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cinefriends/backend/internal/models"
)

var (
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinefriends_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefriends_store_operation_errors_total",
			Help: "Total number of failed store operations by error class",
		},
		[]string{"operation", "error_type"},
	)

	ExportUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinefriends_export_uploads_total",
			Help: "Watchlist snapshot uploads by outcome",
		},
		[]string{"status"},
	)
)

// RecordStoreOperation observes one store call. A nil err only records the duration.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation, ErrorType(err)).Inc()
	}
}

// RecordExportUpload counts a snapshot upload attempt.
func RecordExportUpload(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ExportUploads.WithLabelValues(status).Inc()
}

// ErrorType maps an error onto a low-cardinality label value.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrSelfReference):
		return "self_reference"
	case errors.Is(err, models.ErrDuplicate):
		return "duplicate"
	default:
		return "store"
	}
}
