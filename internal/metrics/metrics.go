// Package metrics holds the prometheus collectors reported by the tick
// scheduler. Every simulation owns its own registry so tests and multiple
// simulations in one process never collide.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gpulife"

// Ticks tracks scheduler progress.
type Ticks struct {
	registry *prometheus.Registry

	// Submitted counts ticks whose unit of work reached the device queue.
	Submitted prometheus.Counter
	// Failed counts ticks that returned an error, labelled by phase.
	Failed *prometheus.CounterVec
	// EncodeSeconds observes the host time spent recording and submitting.
	EncodeSeconds prometheus.Histogram
	// InFlight is 1 while a submitted tick has not completed on the device.
	InFlight prometheus.Gauge
	// Generation is the current tick counter.
	Generation prometheus.Gauge
}

// NewTicks registers the tick collectors on a fresh registry.
func NewTicks() *Ticks {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Ticks{
		registry: reg,
		Submitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_submitted_total",
			Help:      "Ticks whose compute and render work was submitted to the device",
		}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_failed_total",
			Help:      "Ticks that failed, by phase",
		}, []string{"phase"}),
		EncodeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_encode_seconds",
			Help:      "Host time spent encoding and submitting one tick",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tick_in_flight",
			Help:      "1 while the last submitted tick has not completed",
		}),
		Generation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Current tick counter",
		}),
	}
}

// ObserveSubmit records one successful submission.
func (t *Ticks) ObserveSubmit(took time.Duration, generation uint64) {
	t.Submitted.Inc()
	t.EncodeSeconds.Observe(took.Seconds())
	t.InFlight.Set(1)
	t.Generation.Set(float64(generation))
}

// ObserveFailure records a failed tick.
func (t *Ticks) ObserveFailure(phase string) { t.Failed.WithLabelValues(phase).Inc() }

// ObserveComplete marks the last submission as finished.
func (t *Ticks) ObserveComplete() { t.InFlight.Set(0) }

// Registry exposes the registry for gathering.
func (t *Ticks) Registry() *prometheus.Registry { return t.registry }

// Handler serves the registry in the prometheus text format.
func (t *Ticks) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
