// Package metrics exposes container and component timings through Prometheus.
package metrics

import (
	"net/http"
	"regexp"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Path                      string `json:"path" mapstructure:"path" default:"/metrics"`
	Namespace                 string `json:"namespace" mapstructure:"namespace" default:"hartshorn"`
	EnabledGoCollector        bool   `json:"enabledGoCollector" mapstructure:"enabledGoCollector"`
	EnabledBuildInfoCollector bool   `json:"enabledBuildInfoCollector" mapstructure:"enabledBuildInfoCollector"`
}

var defaultBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5}

type Prometheus struct {
	Config      Config
	Registry    *prometheus.Registry
	resolutions *prometheus.HistogramVec
	invocations *prometheus.HistogramVec
	failures    *prometheus.CounterVec

	httpOnce sync.Once
	http     *HTTPMetrics
}

// HTTPMetrics are the request metrics of the diagnostics server.
type HTTPMetrics struct {
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
	Size     *prometheus.SummaryVec
}

func NewPrometheus(c Config) *Prometheus {
	if c.Path == "" {
		c.Path = "/metrics"
	}

	p := &Prometheus{
		Config:   c,
		Registry: prometheus.NewRegistry(),
	}
	p.resolutions = p.RegisterHistogram("resolution_seconds", "Time spent resolving container bindings.",
		[]string{"key", "outcome"}, defaultBuckets)
	p.invocations = p.RegisterHistogram("invocation_seconds", "Time spent in measured component methods.",
		[]string{"component", "method", "outcome"}, defaultBuckets)
	p.failures = p.RegisterCounter("failures_total", "Failed resolutions and invocations.",
		[]string{"kind", "name"})

	if c.EnabledGoCollector {
		p.WithGoCollectorRuntimeMetrics()
	}
	if c.EnabledBuildInfoCollector {
		p.WithBuildInfoCollector()
	}

	return p
}

func (p *Prometheus) RegisterGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.Config.Namespace,
		Name:      name,
		Help:      help,
	}, labels)

	p.Registry.MustRegister(gauge)
	return gauge
}

func (p *Prometheus) RegisterHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.Config.Namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)

	p.Registry.MustRegister(histogram)
	return histogram
}

func (p *Prometheus) RegisterCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.Config.Namespace,
		Name:      name,
		Help:      help,
	}, labels)

	p.Registry.MustRegister(counter)
	return counter
}

func (p *Prometheus) RegisterSummary(name, help string, labels []string, objectives map[float64]float64) *prometheus.SummaryVec {
	summary := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  p.Config.Namespace,
		Name:       name,
		Help:       help,
		Objectives: objectives,
	}, labels)

	p.Registry.MustRegister(summary)
	return summary
}

// HTTP registers the request metrics on first use and returns them.
func (p *Prometheus) HTTP() *HTTPMetrics {
	p.httpOnce.Do(func() {
		p.http = &HTTPMetrics{
			Duration: p.RegisterHistogram("http_request_seconds", "Time spent serving HTTP requests.",
				[]string{"method", "route", "status"}, prometheus.DefBuckets),
			InFlight: p.RegisterGauge("http_requests_in_flight", "HTTP requests currently being served.", nil).
				WithLabelValues(),
			Size: p.RegisterSummary("http_response_size_bytes", "Size of HTTP responses.",
				[]string{"method", "route"}, map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}),
		}
	})
	return p.http
}

func (p *Prometheus) WithGoCollectorRuntimeMetrics() {
	p.Registry.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollectorRuntimeMetrics(collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/.*")}),
	))
}

func (p *Prometheus) WithBuildInfoCollector() {
	p.Registry.MustRegister(collectors.NewBuildInfoCollector())
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{Registry: p.Registry})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
