package config

import (
	"fmt"

	"github.com/kilianp07/crisismatch/core/matching/logging"
)

// DecisionLogConfig defines settings for match decision storage and rotation.
type DecisionLogConfig struct {
	// Backend selects the log store type: "jsonl", "rotating", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
	// Token protects GET /api/match/logs when the API token is unset.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *DecisionLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "none" {
		c.Path = "decisions.log"
	}
}

// Validate checks mandatory fields.
func (c DecisionLogConfig) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "rotating", "sqlite":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Store converts the section to the store options.
func (c DecisionLogConfig) Store() logging.Config {
	return logging.Config{
		Backend:    c.Backend,
		Path:       c.Path,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}
