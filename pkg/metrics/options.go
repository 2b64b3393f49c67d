package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option defines some options to the metrics initialization
type Option func(*settings)

// WithBasePath defines the root for the registered metrics tree
func WithBasePath(location string) Option {
	return func(m *settings) {
		m.basePath = location
	}
}

// WithNamespace sets the prefix of all metric names. The default is "pacbox".
func WithNamespace(namespace string) Option {
	return func(m *settings) {
		m.namespace = namespace
	}
}

// WithRegistry sets the prometheus registry metrics are registered to
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *settings) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeMetrics adds the go runtime and process collectors
func WithRuntimeMetrics(enabled bool) Option {
	return func(m *settings) {
		m.runtime = enabled
	}
}
