package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"requests-signature/internal/signature"
)

// Config controls the Prometheus namespace.
type Config struct {
	Namespace string
}

// Recorder collects request signature metrics on its own registry.
type Recorder struct {
	validations *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	reloads     *prometheus.CounterVec
	registry    *prometheus.Registry
}

var _ signature.Observer = (*Recorder)(nil)

// NewRecorder registers the signature metrics.
func NewRecorder(cfg Config) *Recorder {
	if cfg.Namespace == "" {
		cfg.Namespace = "request_signature"
	}

	registry := prometheus.NewRegistry()
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "validations_total",
		Help:      "Request signature validations by outcome.",
	}, []string{"status"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Name:      "validation_duration_seconds",
		Help:      "Duration of request signature validations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
	reloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "options_reloads_total",
		Help:      "Reloads of the signature options file by result.",
	}, []string{"result"})
	registry.MustRegister(validations, durations, reloads)

	return &Recorder{
		validations: validations,
		durations:   durations,
		reloads:     reloads,
		registry:    registry,
	}
}

// ObserveValidation implements signature.Observer.
func (r *Recorder) ObserveValidation(result signature.ValidationResult, elapsed time.Duration) {
	status := result.Status.String()
	r.validations.WithLabelValues(status).Inc()
	r.durations.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveReload counts an options file reload. A failed reload keeps the previous options.
func (r *Recorder) ObserveReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.reloads.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
