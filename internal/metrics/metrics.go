// Package metrics exposes converter telemetry as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lychee-technology/pim/internal"
)

// Metrics holds the Prometheus collectors fed by the telemetry hooks.
type Metrics struct {
	Conversions       *prometheus.CounterVec
	ResolverLookups   *prometheus.CounterVec
	ExportRowsWritten *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Attribute value conversions by direction and attribute type",
			},
			[]string{"direction", "attribute_type"},
		),
		ResolverLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolver_lookups_total",
				Help:      "Collaborator lookups by resolver and outcome",
			},
			[]string{"resolver", "outcome"},
		),
		ExportRowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_rows_total",
				Help:      "Rows written by export runs",
			},
			[]string{"format"},
		),
	}
}

// Emit routes one telemetry event to its collector. Unknown events are
// ignored.
func (m *Metrics) Emit(_ context.Context, name string, labels map[string]string, value any) {
	switch name {
	case internal.MetricConversions:
		m.Conversions.WithLabelValues(labels["direction"], labels["attribute_type"]).Add(asFloat(value))
	case internal.MetricResolverLookups:
		m.ResolverLookups.WithLabelValues(labels["resolver"], labels["outcome"]).Add(asFloat(value))
	case internal.MetricExportRows:
		m.ExportRowsWritten.WithLabelValues(labels["format"]).Add(asFloat(value))
	}
}

// Register installs m as the process telemetry emitter.
func (m *Metrics) Register() {
	internal.RegisterTelemetryEmitter(m.Emit)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
