package metrics

import "github.com/kilianp07/crisismatch/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is where the /metrics endpoint listens when the
	// service does not expose it on its own HTTP server.
	PrometheusAddr string `json:"prometheus_addr"`
}
