package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/emergency"
	"github.com/kilianp07/crisismatch/core/matching"
	"github.com/kilianp07/crisismatch/core/metrics"
	"github.com/kilianp07/crisismatch/core/quality"
	"github.com/kilianp07/crisismatch/core/workload"
	"github.com/kilianp07/crisismatch/infra/alert"
	"github.com/kilianp07/crisismatch/infra/mqtt"
)

type Config struct {
	Matching     matching.Config     `json:"matching"`
	Availability availability.Config `json:"availability"`
	Workload     workload.Config     `json:"workload"`
	Quality      quality.Config      `json:"quality"`
	Emergency    emergency.Config    `json:"emergency"`
	Cache        CacheConfig         `json:"cache"`
	Profiles     ProfilesConfig      `json:"profiles"`
	DecisionLog  DecisionLogConfig   `json:"decision_log"`
	Metrics      metrics.Config      `json:"metrics"`
	MQTT         mqtt.Config         `json:"mqtt"`
	Alerts       alert.Config        `json:"alerts"`
	HTTP         HTTPConfig          `json:"http"`
	Sentry       SentryConfig        `json:"sentry"`
}

// Defaults returns a configuration with every section at its default.
func Defaults() Config {
	return Config{
		Matching:     matching.DefaultConfig(),
		Availability: availability.DefaultConfig(),
		Workload:     workload.DefaultConfig(),
		Quality:      quality.DefaultConfig(),
		Emergency:    emergency.DefaultConfig(),
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills the sections that carry their own defaults.
func (c *Config) SetDefaults() {
	c.Cache.SetDefaults()
	c.Profiles.SetDefaults()
	c.DecisionLog.SetDefaults()
	c.MQTT.SetDefaults()
	c.Alerts.SetDefaults()
	c.HTTP.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section and names the failing one.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"matching", c.Matching.Validate},
		{"cache", c.Cache.Validate},
		{"profiles", c.Profiles.Validate},
		{"decision_log", c.DecisionLog.Validate},
		{"alerts", c.Alerts.Validate},
		{"http", c.HTTP.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	if c.Quality.MinQualityFloor < 0 || c.Quality.MinQualityFloor > 1 {
		return fmt.Errorf("quality: min_quality_floor %v outside [0,1]", c.Quality.MinQualityFloor)
	}
	if c.Workload.MaxDailyHours <= 0 || c.Workload.MaxWeeklyHours < c.Workload.MaxDailyHours {
		return fmt.Errorf("workload: max_weekly_hours must be at least max_daily_hours > 0")
	}
	return nil
}
