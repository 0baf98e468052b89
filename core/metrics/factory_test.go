package metrics_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/crisismatch/core/factory"
	metrics "github.com/kilianp07/crisismatch/core/metrics"
	_ "github.com/kilianp07/crisismatch/infra/metrics"
)

func TestBuiltinSinkTypes(t *testing.T) {
	assert.Subset(t, metrics.SinkTypes(), []string{"influx", "nop", "prometheus"})
}

func TestNewMetricsSinkShapes(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	assert.Len(t, m.Sinks, 2)
}

func TestSinksFromYAML(t *testing.T) {
	var cfg metrics.Config
	data := "sinks:\n  - type: nop\n  - type: nop\n"
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	assert.Len(t, cfg.Sinks, 2)
	s, err := metrics.NewMetricsSink(cfg.Sinks)
	require.NoError(t, err)
	assert.IsType(t, &metrics.MultiSink{}, s)
}

func TestUnknownSinkFromJSON(t *testing.T) {
	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"nop"},{"type":"statsd"}]}`), &cfg))
	_, err := metrics.NewMetricsSink(cfg.Sinks)
	if err == nil {
		t.Fatal("expected error for unknown sink type")
	}
	assert.Contains(t, err.Error(), "metrics sink 1 (statsd)")
}
