package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ResultSuccess labels successful operations
	ResultSuccess = "success"

	// ResultFailure labels failed operations
	ResultFailure = "failure"
)

// Init global settings for metrics collection, such as the namespace and the registry.
//
// Init may be called multiple times: only the first time matters.
// Metrics registered before any call to Init use the default settings.
func Init(opts ...Option) {
	initOnce.Do(func() {
		mp = newSettings(opts...)
	})
}

// EnsureMetrics allows for lazy registration of metrics definitions.
//
// It may safely be called several times, and only the first registration
// for a given unique location will be retained.
//
// When running several times, it ensures that all subsequent calls on the same location
// specify the same metrics type, otherwise it panics.
func EnsureMetrics(location string, m interface{}) interface{} {
	Init()
	return mp.EnsureMetrics(location, m)
}

// Handler serves the registered metrics to prometheus scrapers
func Handler() http.Handler {
	Init()
	return mp.Handler()
}

// Registry holding all registered metrics
func Registry() *prometheus.Registry {
	Init()
	return mp.registry
}

// Result maps an error to a result label
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Inc increments a counter-like metric
func Inc(counter *prometheus.CounterVec, labels ...string) {
	if counter == nil {
		return
	}
	counter.WithLabelValues(labels...).Inc()
}

// Set a gauge
func Set(gauge *prometheus.GaugeVec, value float64, labels ...string) {
	if gauge == nil {
		return
	}
	gauge.WithLabelValues(labels...).Set(value)
}

// Observe feeds a histogram
func Observe(histogram *prometheus.HistogramVec, value float64, labels ...string) {
	if histogram == nil {
		return
	}
	histogram.WithLabelValues(labels...).Observe(value)
}

// Since feeds a timing measurement in seconds from some start time
func Since(start time.Time, histogram *prometheus.HistogramVec, labels ...string) {
	Observe(histogram, time.Since(start).Seconds(), labels...)
}

// Enable equips any type with some capabilities to collect metrics in a very concise way.
//
// Sample usage:
//
//	type myType struct{
//	  ...
//	  metrics.Enable
//	  m *metrics.ExportMetrics // m points to the globally registered metrics collector
//	}
//
//	func NewMyType() *myType {
//	  ...
//	  t := &MyType{}
//	  t.m = t.EnsureMetrics("export", &metrics.ExportMetrics{}).(*metrics.ExportMetrics)
//	  t.EnableMetrics(true)
//	  return t
//	}
type Enable struct {
	metricsEnabled bool
}

// MetricsEnabled tells whether metrics are enabled or not
func (e Enable) MetricsEnabled() bool {
	return e.metricsEnabled
}

// EnableMetrics toggles metrics collection
func (e *Enable) EnableMetrics(enabled bool) {
	e.metricsEnabled = enabled
}

// EnsureMetrics registers a type describing metrics to the global metrics collection.
// The name argument constructs a new path in the metrics tree.
//
// NOTE: EnsureMetrics will panic if not called with a pointer to a struct.
func (e *Enable) EnsureMetrics(name string, m interface{}) interface{} {
	return EnsureMetrics(name, m)
}
