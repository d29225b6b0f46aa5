// Package metrics records save activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/scribe/pkg/session"
)

// Recorder implements session.Metrics on its own registry, so several
// recorders (one per test, say) never collide.
type Recorder struct {
	registry  *prometheus.Registry
	saves     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	rollbacks prometheus.Counter
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_saves_total",
			Help: "Note saves by trigger and result.",
		}, []string{"trigger", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_save_duration_seconds",
			Help:    "Repository latency of note saves.",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		rollbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_cache_rollbacks_total",
			Help: "Optimistic cache mutations rolled back after a failed save.",
		}),
	}
}

// ObserveSave implements session.Metrics.
func (r *Recorder) ObserveSave(trigger session.Trigger, result string, elapsed time.Duration) {
	r.saves.WithLabelValues(string(trigger), result).Inc()
	r.duration.WithLabelValues(string(trigger)).Observe(elapsed.Seconds())
}

// ObserveRollback implements session.Metrics.
func (r *Recorder) ObserveRollback() {
	r.rollbacks.Inc()
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var _ session.Metrics = (*Recorder)(nil)
