package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crisismatch/core/model"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `matching:
  min_viable_score: 0.5
  weights:
    HIGH:
      specialty: 0.5
      availability: 0.5
  fallbacks:
    - type: "TRANSFER"
      conf:
        partners: ["line-a"]
availability:
  stale_after_seconds: 60
workload:
  max_daily_hours: 10
cache:
  backend: "redis"
  redis:
    url: "redis://localhost:6379/0"
    read_timeout: "250ms"
profiles:
  backend: "sqlite"
  seed: "roster.yaml"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  use_tls: false
alerts:
  enabled: true
  recipients: ["+15550001"]
metrics:
  sinks:
    - type: "prometheus"
http:
  token: "secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"min_viable_score", cfg.Matching.MinViableScore, 0.5},
		{"max_reserve_attempts default", cfg.Matching.MaxReserveAttempts, 3},
		{"weights", cfg.Matching.Weights[model.UrgencyHigh]["specialty"], 0.5},
		{"fallback type", cfg.Matching.Fallbacks[0].Type, "TRANSFER"},
		{"stale_after_seconds", cfg.Availability.StaleAfterSeconds, 60},
		{"default_max_sessions", cfg.Availability.DefaultMaxSessions, 3},
		{"max_daily_hours", cfg.Workload.MaxDailyHours, 10.0},
		{"max_weekly_hours default", cfg.Workload.MaxWeeklyHours, 40.0},
		{"cache backend", cfg.Cache.Backend, "redis"},
		{"redis read timeout", cfg.Cache.Redis.ReadTimeout, 250 * time.Millisecond},
		{"redis prefix default", cfg.Cache.Redis.Prefix, "crisismatch:"},
		{"profiles path default", cfg.Profiles.Path, "profiles.db"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"presence topic default", cfg.MQTT.PresenceTopic, "crisis/responders/+/presence"},
		{"alerts severity default", cfg.Alerts.MinSeverity, "critical"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"http addr default", cfg.HTTP.Addr, ":8080"},
		{"http token", cfg.HTTP.Token, "secret"},
		{"decision log default", cfg.DecisionLog.Backend, "jsonl"},
		{"quality floor default", cfg.Quality.MinQualityFloor, 0.5},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"http":{"addr":":9000"}}`)
	t.Setenv("K_HTTP__TOKEN", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "from-env", cfg.HTTP.Token)
}

func TestLoadRejectsInvalidSections(t *testing.T) {
	cases := map[string]string{
		"matching":     "matching:\n  min_viable_score: 1.5\n",
		"cache":        "cache:\n  backend: redis\n",
		"profiles":     "profiles:\n  backend: postgres\n",
		"decision_log": "decision_log:\n  backend: csv\n",
		"alerts":       "alerts:\n  enabled: true\n",
		"sentry":       "sentry:\n  traces_sample_rate: 2\n",
	}
	for section, data := range cases {
		t.Run(section, func(t *testing.T) {
			_, err := Load(writeConfig(t, "c.yaml", data))
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), section+":"), err.Error())
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "c.toml", "x = 1"))
	assert.Error(t, err)
}
