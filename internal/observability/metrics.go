package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// Metrics holds the Prometheus metrics of conversions.
type Metrics struct {
	// Registry owns the metrics and backs the /metrics endpoint.
	Registry *prometheus.Registry

	conversions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	records     *prometheus.CounterVec
}

// NewMetrics creates a private registry so that repeated construction in
// tests does not panic on duplicate registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sepacetamol_conversions_total",
				Help: "Conversions by output kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sepacetamol_conversion_duration_seconds",
				Help:    "Duration of conversions by output kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sepacetamol_records_total",
				Help: "Payments or bookings written by output kind.",
			},
			[]string{"kind"},
		),
	}
}

// RecordConversion counts one finished conversion. A nil receiver is a no-op.
func (m *Metrics) RecordConversion(kind string, d time.Duration, records int, err error) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(kind, Status(err)).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
	if records > 0 {
		m.records.WithLabelValues(kind).Add(float64(records))
	}
}

// Status labels an outcome: "success", "rejected" for data errors and
// "error" for everything else.
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case types.IsUserError(err):
		return "rejected"
	}
	return "error"
}
