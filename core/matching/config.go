package matching

import (
	"fmt"
	"time"

	"github.com/kilianp07/crisismatch/core/factory"
	"github.com/kilianp07/crisismatch/core/model"
)

// Score components.
const (
	CompSpecialty    = "specialty"
	CompLanguage     = "language"
	CompExperience   = "experience"
	CompAvailability = "availability"
	CompPerformance  = "performance"
	CompGeographic   = "geographic"
	CompCultural     = "cultural"
	CompWorkload     = "workload"
	CompReliability  = "reliability"
	CompEmergency    = "emergency"
)

var components = []string{
	CompSpecialty, CompLanguage, CompExperience, CompAvailability, CompPerformance,
	CompGeographic, CompCultural, CompWorkload, CompReliability, CompEmergency,
}

// Weights maps score components to their weight.
type Weights map[string]float64

// normalized returns a copy scaled to sum to 1. Unknown or negative entries are dropped.
func (w Weights) normalized() Weights {
	var sum float64
	out := make(Weights, len(components))
	for _, c := range components {
		if v := w[c]; v > 0 {
			out[c] = v
			sum += v
		}
	}
	if sum == 0 {
		return out
	}
	for c, v := range out {
		out[c] = v / sum
	}
	return out
}

// DefaultWeights returns the weighting for an urgency tier. Emergency
// weighting favours availability and pool membership over specialty depth.
func DefaultWeights(u model.Urgency) Weights {
	switch u {
	case model.UrgencyEmergency:
		return Weights{
			CompSpecialty: 0.10, CompLanguage: 0.10, CompExperience: 0.05,
			CompAvailability: 0.30, CompPerformance: 0.05, CompGeographic: 0.02,
			CompCultural: 0.03, CompWorkload: 0.10, CompReliability: 0.10,
			CompEmergency: 0.15,
		}
	case model.UrgencyHigh, model.UrgencyCritical:
		return Weights{
			CompSpecialty: 0.20, CompLanguage: 0.15, CompExperience: 0.10,
			CompAvailability: 0.15, CompPerformance: 0.10, CompGeographic: 0.03,
			CompCultural: 0.07, CompWorkload: 0.12, CompReliability: 0.08,
		}
	default:
		return Weights{
			CompSpecialty: 0.20, CompLanguage: 0.15, CompExperience: 0.10,
			CompAvailability: 0.10, CompPerformance: 0.15, CompGeographic: 0.05,
			CompCultural: 0.10, CompWorkload: 0.10, CompReliability: 0.05,
		}
	}
}

// Config tunes the match engine.
type Config struct {
	// MinViableScore is the lowest composite score accepted without fallback.
	MinViableScore float64 `json:"min_viable_score"`
	// MaxReserveAttempts bounds retries after reservation races.
	MaxReserveAttempts int `json:"max_reserve_attempts"`
	// Alternatives is the number of runner-ups kept on a match.
	Alternatives int `json:"alternatives"`
	// ComponentTimeoutMs bounds each workload, quality and cultural lookup.
	ComponentTimeoutMs int `json:"component_timeout_ms"`
	// FallbackTimeoutMs is the share of the wait budget kept for fallback
	// handling; scoring gets the rest.
	FallbackTimeoutMs int `json:"fallback_timeout_ms"`
	// Weights overrides the default weighting per urgency tier.
	Weights map[model.Urgency]Weights `json:"weights"`
	// Fallbacks configures the fallback strategies; missing ones use defaults.
	Fallbacks []factory.ModuleConfig `json:"fallbacks"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinViableScore:     0.4,
		MaxReserveAttempts: 3,
		Alternatives:       3,
		ComponentTimeoutMs: 1500,
		FallbackTimeoutMs:  2000,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.MinViableScore < 0 || c.MinViableScore > 1 {
		return fmt.Errorf("min_viable_score %v outside [0,1]", c.MinViableScore)
	}
	if c.MaxReserveAttempts < 0 {
		return fmt.Errorf("negative max_reserve_attempts")
	}
	for u := range c.Weights {
		if !u.Valid() {
			return fmt.Errorf("weights for unknown urgency %q", u)
		}
	}
	return nil
}

func (c Config) weights(u model.Urgency) Weights {
	if w, ok := c.Weights[u]; ok && len(w) > 0 {
		return w.normalized()
	}
	return DefaultWeights(u).normalized()
}

func (c Config) attempts() int {
	if c.MaxReserveAttempts <= 0 {
		return 3
	}
	return c.MaxReserveAttempts
}

func (c Config) componentTimeout() time.Duration {
	if c.ComponentTimeoutMs <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.ComponentTimeoutMs) * time.Millisecond
}

func (c Config) fallbackTimeout() time.Duration {
	if c.FallbackTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.FallbackTimeoutMs) * time.Millisecond
}

// scoringBudget is the part of the wait budget spent finding a scored match.
// The remainder is left to the fallback; scoring never gets less than half.
func (c Config) scoringBudget(budget time.Duration) time.Duration {
	s := budget - c.fallbackTimeout()
	if limit := budget - budget/20; s > limit {
		s = limit
	}
	if s < budget/2 {
		s = budget / 2
	}
	return s
}
