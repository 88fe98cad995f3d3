package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes the outcome of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// PrometheusMetricsRecorder publishes operation counters and latency histograms,
// plus a gauge of ingredients currently at or below their minimum stock.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	lowStock   prometheus.Gauge
}

// NewPrometheusMetricsRecorder registers the bakery collectors with reg. Passing
// nil uses the default registerer. Collectors already registered under the same
// names are reused.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bakery",
		Subsystem: "core",
		Name:      "operations_total",
		Help:      "Service operations by name and status.",
	}, []string{"operation", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bakery",
		Subsystem: "core",
		Name:      "operation_duration_seconds",
		Help:      "Service operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bakery",
		Subsystem: "inventory",
		Name:      "low_stock_ingredients",
		Help:      "Ingredients at or below their minimum stock.",
	})

	var err error
	if operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if lowStock, err = register(reg, lowStock); err != nil {
		return nil, err
	}
	return &PrometheusMetricsRecorder{operations: operations, latency: latency, lowStock: lowStock}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe records a service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetLowStock publishes the current number of low-stock ingredients.
func (r *PrometheusMetricsRecorder) SetLowStock(n int) {
	r.lowStock.Set(float64(n))
}
