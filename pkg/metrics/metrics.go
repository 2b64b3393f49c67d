// Package metrics collects prometheus metrics for pacbox components.
//
// Components declare their metrics as a struct of collector pointers decorated
// with struct tags, and register it once with EnsureMetrics.
package metrics

import (
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/docker/go-units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// KB stands for kilo bytes (1024 bytes)
	KB = units.KiB

	// MB stands for mega bytes (1024 kilo bytes)
	MB = units.MiB

	unitBytes = "bytes"

	defaultNamespace = "pacbox"
)

var (
	// global settings for metrics
	mp       *settings
	initOnce sync.Once
)

type settings struct {
	namespace string
	basePath  string
	registry  *prometheus.Registry

	// a map of all registered modules
	modules    map[string]interface{}
	collectors []prometheus.Collector
	exclusive  sync.Mutex

	runtime bool
}

func defaultSettings() *settings {
	return &settings{
		namespace: defaultNamespace,
		modules:   make(map[string]interface{}),
	}
}

func newSettings(opts ...Option) *settings {
	s := defaultSettings()
	for _, apply := range opts {
		apply(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.runtime {
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return s
}

func (s *settings) EnsureMetrics(location string, m interface{}) interface{} {
	s.exclusive.Lock()
	defer s.exclusive.Unlock()
	location = path.Join(s.basePath, location)

	if existing, ok := s.modules[location]; ok {
		if !equalType(existing, m) {
			panic("trying to re-register existing metrics module with a different type")
		}
		return existing
	}
	scanStruct(location, s.addMetric, m)
	s.modules[location] = m
	return m
}

func (s *settings) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// addMetric creates a collector according to the decoded struct tags, and registers it.
//
// Supported collectors are *prometheus.CounterVec, *prometheus.GaugeVec and *prometheus.HistogramVec.
// Histograms get buckets according to their unit:
//   - seconds (the default) get the default prometheus buckets
//   - bytes get exponential buckets from 1KB to 256MB
func (s *settings) addMetric(m interface{}, group string, tags metricTags) interface{} {
	name := metricName(s.namespace, group, tags.name)
	description := tags.description
	if description == "" {
		description = strings.ReplaceAll(name, "_", " ")
	}
	labels := tags.labels

	var collector prometheus.Collector
	switch m.(type) {
	case *prometheus.CounterVec:
		collector = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: description}, labels)
	case *prometheus.GaugeVec:
		collector = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: description}, labels)
	case *prometheus.HistogramVec:
		collector = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    description,
			Buckets: buckets(tags.unit),
		}, labels)
	default:
		return nil
	}

	if err := s.registry.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			collector = already.ExistingCollector
		} else {
			panic(err)
		}
	}
	s.collectors = append(s.collectors, collector)

	return collector
}

func buckets(unit string) []float64 {
	if unit == unitBytes {
		return prometheus.ExponentialBuckets(KB, 4, 10)
	}
	return prometheus.DefBuckets
}

// metricName builds a prometheus metric name like namespace_group_metric
func metricName(namespace, group, metric string) string {
	parts := make([]string, 0, 5)
	if namespace != "" {
		parts = append(parts, namespace)
	}
	for _, p := range strings.Split(group, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	parts = append(parts, metric)

	return strings.ReplaceAll(strings.Join(parts, "_"), "-", "_")
}
