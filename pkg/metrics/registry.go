// Package metrics defines the observability interfaces the rest of
// the module programs against (interfaces.go, which does not import
// Prometheus) and holds the process-wide Prometheus registry, which
// stays unset until InitRegistry is called. pkg/metrics/prometheus
// provides the concrete implementation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry enables metrics collection against a fresh Prometheus
// registry, called once at startup if the loaded configuration
// requests it.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool { return enabled }

// GetRegistry returns the process-wide registry. Only meaningful after
// InitRegistry; callers must check IsEnabled first.
func GetRegistry() *prometheus.Registry { return registry }
