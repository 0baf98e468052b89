package workload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines default limits and assessment tuning. Per-responder
// overrides come from the profile WorkLimits.
type Config struct {
	MaxDailyHours          float64 `json:"max_daily_hours" yaml:"max_daily_hours"`
	MaxWeeklyHours         float64 `json:"max_weekly_hours" yaml:"max_weekly_hours"`
	MaxConsecutiveSessions int     `json:"max_consecutive_sessions" yaml:"max_consecutive_sessions"`
	MandatoryBreakMinutes  int     `json:"mandatory_break_minutes" yaml:"mandatory_break_minutes"`
	MinRestHours           float64 `json:"min_rest_hours" yaml:"min_rest_hours"`
	MinPerformanceRating   float64 `json:"min_performance_rating" yaml:"min_performance_rating"`

	CacheTTLSeconds        int `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	AssessTimeoutMs        int `json:"assess_timeout_ms" yaml:"assess_timeout_ms"`
	ValidateTimeoutMs      int `json:"validate_timeout_ms" yaml:"validate_timeout_ms"`
	PlanTimeoutMs          int `json:"plan_timeout_ms" yaml:"plan_timeout_ms"`
	MonitorIntervalSeconds int `json:"monitor_interval_seconds" yaml:"monitor_interval_seconds"`
	// MinAvailableResponders raises a coverage alert when fewer are available.
	MinAvailableResponders int `json:"min_available_responders" yaml:"min_available_responders"`

	// Capacity planning.
	AvgSessionMinutes   float64 `json:"avg_session_minutes" yaml:"avg_session_minutes"`
	DefaultHourlyDemand float64 `json:"default_hourly_demand" yaml:"default_hourly_demand"`
	DemandBuffer        float64 `json:"demand_buffer" yaml:"demand_buffer"`
	HistoryWeeks        int     `json:"history_weeks" yaml:"history_weeks"`
}

// DefaultConfig returns the standard crisis-line limits.
func DefaultConfig() Config {
	return Config{
		MaxDailyHours:          8,
		MaxWeeklyHours:         40,
		MaxConsecutiveSessions: 6,
		MandatoryBreakMinutes:  120,
		MinRestHours:           10,
		MinPerformanceRating:   3.5,
		CacheTTLSeconds:        60,
		AssessTimeoutMs:        2000,
		ValidateTimeoutMs:      1000,
		PlanTimeoutMs:          5000,
		MonitorIntervalSeconds: 30,
		MinAvailableResponders: 2,
		AvgSessionMinutes:      45,
		DefaultHourlyDemand:    4,
		DemandBuffer:           0.2,
		HistoryWeeks:           8,
	}
}

func ms(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

func (c Config) cacheTTL() time.Duration { return time.Duration(c.CacheTTLSeconds) * time.Second }

func (c Config) assessTimeout() time.Duration { return ms(c.AssessTimeoutMs, 2000) }

func (c Config) validateTimeout() time.Duration { return ms(c.ValidateTimeoutMs, 1000) }

func (c Config) planTimeout() time.Duration { return ms(c.PlanTimeoutMs, 5000) }

// MonitorInterval returns the sweep period of the burnout monitor.
func (c Config) MonitorInterval() time.Duration {
	if c.MonitorIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.MonitorIntervalSeconds) * time.Second
}

// LoadConfig reads a Config from a JSON or YAML file, starting from the
// defaults so partial files are accepted.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	return cfg, err
}
