package matching

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kilianp07/crisismatch/core/factory"
	"github.com/kilianp07/crisismatch/core/model"
)

// DefaultResources is served when no human responder can take the session.
var DefaultResources = []string{
	"988 Suicide & Crisis Lifeline (call or text 988)",
	"Crisis Text Line (text HOME to 741741)",
	"Local emergency services (911)",
}

// FallbackContext is what a strategy can act on.
type FallbackContext struct {
	Request model.MatchRequest
	Reason  string
	// Ranked holds the scored candidates, best first, including those
	// below the viability threshold.
	Ranked []model.Alternative
	// Reserve books the best reservable ranked candidate regardless of score.
	Reserve func(ctx context.Context) (*model.MatchResult, bool)
	// Emergency books a responder from the emergency pool.
	Emergency func(ctx context.Context) (*model.MatchResult, bool)
	Now       time.Time
}

// Fallback turns an unmatched request into an actionable decision.
type Fallback interface {
	Apply(ctx context.Context, fc FallbackContext) model.FallbackDecision
}

var fallbackRegistry = factory.NewRegistry[Fallback]()

// RegisterFallback adds a fallback factory for a strategy name.
func RegisterFallback(s model.FallbackStrategy, f factory.Factory[Fallback]) error {
	return fallbackRegistry.Register(string(s), f)
}

// NewFallbacks builds one handler per known strategy. Strategies missing
// from cfgs are created with an empty configuration.
func NewFallbacks(cfgs []factory.ModuleConfig) (map[model.FallbackStrategy]Fallback, error) {
	out := make(map[model.FallbackStrategy]Fallback, 4)
	for _, c := range cfgs {
		s := model.FallbackStrategy(c.Type)
		if !s.Valid() {
			return nil, fmt.Errorf("matching: unknown fallback strategy %q", c.Type)
		}
		f, err := fallbackRegistry.Create(c)
		if err != nil {
			return nil, fmt.Errorf("matching: fallback %s: %w", c.Type, err)
		}
		out[s] = f
	}
	for _, s := range []model.FallbackStrategy{model.FallbackBestAvailable, model.FallbackEscalate, model.FallbackTransfer, model.FallbackResourcesOnly} {
		if _, ok := out[s]; ok {
			continue
		}
		f, err := fallbackRegistry.Create(factory.ModuleConfig{Type: string(s)})
		if err != nil {
			return nil, fmt.Errorf("matching: fallback %s: %w", s, err)
		}
		out[s] = f
	}
	return out, nil
}

func resourcesOr(r []string) []string {
	if len(r) == 0 {
		return append([]string(nil), DefaultResources...)
	}
	return append([]string(nil), r...)
}

// BestAvailable accepts the best reservable candidate regardless of score.
// Urgent requests then try the emergency pool; otherwise resources are served.
type BestAvailable struct {
	Resources []string `json:"resources"`
}

func (b BestAvailable) Apply(ctx context.Context, fc FallbackContext) model.FallbackDecision {
	d := model.FallbackDecision{Strategy: model.FallbackBestAvailable, Reason: fc.Reason, DecidedAt: fc.Now}
	if fc.Reserve != nil {
		if m, ok := fc.Reserve(ctx); ok {
			d.Match = m
			return d
		}
	}
	if fc.Request.Urgency.Rank() >= model.UrgencyHigh.Rank() && fc.Emergency != nil {
		if m, ok := fc.Emergency(ctx); ok {
			d.Match = m
			d.Reason += "; served from emergency pool"
			return d
		}
	}
	d.Resources = resourcesOr(b.Resources)
	return d
}

// Escalate hands the session to the emergency protocol.
type Escalate struct {
	Contact   string   `json:"contact"`
	Resources []string `json:"resources"`
}

func (e Escalate) Apply(ctx context.Context, fc FallbackContext) model.FallbackDecision {
	d := model.FallbackDecision{Strategy: model.FallbackEscalate, Reason: fc.Reason, DecidedAt: fc.Now}
	d.EscalatedTo = e.Contact
	if d.EscalatedTo == "" {
		d.EscalatedTo = "emergency_protocol"
	}
	if fc.Emergency != nil {
		if m, ok := fc.Emergency(ctx); ok {
			d.Match = m
			return d
		}
	}
	d.Resources = resourcesOr(e.Resources)
	return d
}

// Transfer routes the session to a partner line, round-robin.
type Transfer struct {
	Partners  []string `json:"partners"`
	Resources []string `json:"resources"`

	next *atomic.Uint64
}

func (t Transfer) Apply(_ context.Context, fc FallbackContext) model.FallbackDecision {
	d := model.FallbackDecision{Strategy: model.FallbackTransfer, Reason: fc.Reason, DecidedAt: fc.Now}
	if len(t.Partners) > 0 && t.next != nil {
		i := t.next.Add(1) - 1
		d.Partner = t.Partners[i%uint64(len(t.Partners))]
		return d
	}
	d.Reason += "; no transfer partner configured"
	d.Resources = resourcesOr(t.Resources)
	return d
}

// ResourcesOnly serves automated resources without a human responder.
type ResourcesOnly struct {
	Resources []string `json:"resources"`
}

func (r ResourcesOnly) Apply(_ context.Context, fc FallbackContext) model.FallbackDecision {
	return model.FallbackDecision{
		Strategy:  model.FallbackResourcesOnly,
		Reason:    fc.Reason,
		Resources: resourcesOr(r.Resources),
		DecidedAt: fc.Now,
	}
}

func init() {
	_ = RegisterFallback(model.FallbackBestAvailable, func(conf map[string]any) (Fallback, error) {
		var b BestAvailable
		err := factory.Decode(conf, &b)
		return b, err
	})
	_ = RegisterFallback(model.FallbackEscalate, func(conf map[string]any) (Fallback, error) {
		var e Escalate
		err := factory.Decode(conf, &e)
		return e, err
	})
	_ = RegisterFallback(model.FallbackTransfer, func(conf map[string]any) (Fallback, error) {
		t := Transfer{next: new(atomic.Uint64)}
		err := factory.Decode(conf, &t)
		return t, err
	})
	_ = RegisterFallback(model.FallbackResourcesOnly, func(conf map[string]any) (Fallback, error) {
		var r ResourcesOnly
		err := factory.Decode(conf, &r)
		return r, err
	})
}
