// Package infra groups the adapters that connect the matcher to the outside:
// stores for profiles and caches, the MQTT presence feed, metrics sinks,
// SMS alerting and error tracking. Core packages never import infra; the
// app package wires the two together.
package infra
