package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the bouncer's Prometheus metrics.
type Config struct {
	// Namespace is the metrics namespace (default: "bouncer").
	Namespace string

	// Buckets are the histogram buckets for decision latency.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is where metrics are registered and gathered from.
	// Default: a fresh prometheus.Registry
	Registry *prometheus.Registry
}

// Option configures the metrics recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Recorder counts gate outcomes. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	logins    *prometheus.CounterVec
}

func New(opts ...Option) *Recorder {
	cfg := Config{
		Namespace: "bouncer",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)
	return &Recorder{
		registry: cfg.Registry,
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "decisions_total",
			Help:      "Gate decisions by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "decision_duration_seconds",
			Help:      "Time spent deciding a request, including session store round trips",
			Buckets:   cfg.Buckets,
		}, []string{"outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "logins_total",
			Help:      "Completed OAuth callbacks by result",
		}, []string{"result"}),
	}
}

// ObserveDecision records one gate outcome
func (r *Recorder) ObserveDecision(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveLogin records one OAuth callback
func (r *Recorder) ObserveLogin(result string) {
	if r == nil {
		return
	}
	r.logins.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
