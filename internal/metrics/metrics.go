// Package metrics provides Prometheus metrics collection for the pacer
// library: per-class outcome counts, advised delay, adaptive factor and
// observed call latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/actual-software/llm-pacer/pkg/pacer"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"

	// noErrorKind is the error_kind label for successful outcomes.
	noErrorKind = "none"
)

// Registry holds all Prometheus metrics. It implements pacer.StatsRecorder.
type Registry struct {
	OutcomesTotal   *prometheus.CounterVec
	CurrentDelay    *prometheus.GaugeVec
	AdaptiveFactor  *prometheus.GaugeVec
	ObservedLatency *prometheus.HistogramVec
	WorkerCount     *prometheus.GaugeVec
}

// NewRegistry creates the metric set registered against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_pacer_outcomes_total",
			Help: "Total number of recorded call outcomes",
		}, []string{"class", "result", "error_kind"}),
		CurrentDelay: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_pacer_current_delay_seconds",
			Help: "Delay currently advised to callers",
		}, []string{"class"}),
		AdaptiveFactor: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_pacer_adaptive_factor",
			Help: "Slow-moving multiplier applied to the base delay",
		}, []string{"class"}),
		ObservedLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llm_pacer_call_latency_seconds",
			Help:    "Observed latency of completed calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"class"}),
		WorkerCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_pacer_worker_count",
			Help: "Advisory worker-pool size per caller class",
		}, []string{"class"}),
	}
}

// ObserveOutcome records one completed call outcome.
func (r *Registry) ObserveOutcome(class string, succeeded bool, kind pacer.ErrorKind, latency time.Duration) {
	result := resultFailure

	kindLabel := string(kind)
	if succeeded {
		result = resultSuccess
		kindLabel = noErrorKind
	}

	r.OutcomesTotal.WithLabelValues(class, result, kindLabel).Inc()

	if latency > 0 {
		r.ObservedLatency.WithLabelValues(class).Observe(latency.Seconds())
	}
}

// SetDelay records the delay most recently advised for a class.
func (r *Registry) SetDelay(class string, delay time.Duration) {
	r.CurrentDelay.WithLabelValues(class).Set(delay.Seconds())
}

// SetAdaptiveFactor records the current adaptive factor for a class.
func (r *Registry) SetAdaptiveFactor(class string, factor float64) {
	r.AdaptiveFactor.WithLabelValues(class).Set(factor)
}

// SetWorkerCount records the advisory worker-pool size for a class.
func (r *Registry) SetWorkerCount(class string, workers int) {
	r.WorkerCount.WithLabelValues(class).Set(float64(workers))
}
