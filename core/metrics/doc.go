// Package metrics describes what the matcher reports about itself: match
// decisions, alerts, burnout scores, status transitions and pool size.
// A sink implements MetricsSink and any of the optional recorder interfaces
// it cares about. Concrete sinks live in infra/metrics and register
// themselves by type name.
package metrics
