// Package metrics instruments the render pipeline with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render outcome label values.
const (
	OutcomeSSR         = "ssr"
	OutcomeStatic      = "static"
	OutcomeLoader      = "loader_response"
	OutcomeNotModified = "not_modified"
	OutcomeError       = "error"
)

// Render tracks render pipeline activity.
type Render struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRender registers render metrics with the given registry. A nil
// registry falls back to prometheus.DefaultRegisterer.
func NewRender(reg prometheus.Registerer) *Render {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Render{
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veldt",
			Name:      "renders_total",
			Help:      "Completed renders by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "veldt",
			Name:      "render_duration_seconds",
			Help:      "Render pipeline latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

// Observe records one completed render.
func (m *Render) Observe(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}
