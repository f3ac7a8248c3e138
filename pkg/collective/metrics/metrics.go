// Package metrics provides the Prometheus-backed types.MetricsRecorder
// implementation engines push observations through: collective wall-clock
// duration, queue-full retry counts and transport error counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements types.MetricsRecorder on top of three Prometheus
// collectors, registered once per process.
type Recorder struct {
	duration          *prometheus.HistogramVec
	queueFullRetries  *prometheus.CounterVec
	transportErrors   *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors against reg. Passing
// a dedicated *prometheus.Registry (rather than the global one) is
// recommended when more than one Group shares a process.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "collective",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a collective call, from entry to returned status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collective", "variant"}),
		queueFullRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collective",
			Name:      "queue_full_retries_total",
			Help:      "Number of times a submit call was retried after QUEUE_FULL.",
		}, []string{"collective"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collective",
			Name:      "transport_errors_total",
			Help:      "Number of non-SUCCESS, non-QUEUE_FULL, non-TIMEOUT transport returns observed by an engine.",
		}, []string{"collective"}),
	}
	reg.MustRegister(r.duration, r.queueFullRetries, r.transportErrors)
	return r
}

func (r *Recorder) ObserveCollective(collective, variant string, seconds float64) {
	r.duration.WithLabelValues(collective, variant).Observe(seconds)
}

func (r *Recorder) IncQueueFullRetry(collective string) {
	r.queueFullRetries.WithLabelValues(collective).Inc()
}

func (r *Recorder) IncTransportError(collective string) {
	r.transportErrors.WithLabelValues(collective).Inc()
}
