package emergency

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/crisismatch/core/availability"
	"github.com/kilianp07/crisismatch/core/model"
)

// Pick is the responder chosen from the emergency pool.
type Pick struct {
	Status model.ResponderStatus
	Tier   string
	// SpecialtyMatch is true when the responder holds every required specialty.
	SpecialtyMatch bool
}

// GetEmergencyResponder returns an available pool member, preferring the
// critical response roster, then specialist backup, then supervisors. Within
// a tier, responders holding the required specialties come first, then the
// least loaded. Responders listed in exclude are skipped.
func (m *Manager) GetEmergencyResponder(ctx context.Context, req model.MatchRequest, exclude ...string) (Pick, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.lookupTimeout())
	defer cancel()

	now := m.now()
	if m.needsRotation(now) {
		if _, err := m.Rotate(ctx); err != nil {
			m.log.Warnf("emergency lookup: %v", err)
		}
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	for _, t := range m.tiers(now) {
		if err := ctx.Err(); err != nil {
			return Pick{}, fmt.Errorf("emergency lookup: %w", model.ErrMatchTimeout)
		}
		if len(t.ids) == 0 {
			continue
		}
		live := m.registry.GetAvailable(availability.Filter{
			IncludeEmergencyOnly:   true,
			EmergencyAvailableOnly: true,
			IDs:                    t.ids,
		})
		cands := make([]Pick, 0, len(live))
		for _, st := range live {
			if _, ok := skip[st.ID]; ok {
				continue
			}
			p := Pick{Status: st, Tier: t.name}
			if len(req.RequiredSpecialties) > 0 {
				if prof, err := m.profiles.Get(ctx, st.ID); err == nil {
					p.SpecialtyMatch = prof.HasAllSpecialties(req.RequiredSpecialties)
				}
			}
			cands = append(cands, p)
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].SpecialtyMatch != cands[j].SpecialtyMatch {
				return cands[i].SpecialtyMatch
			}
			ui, uj := cands[i].Status.Utilization(), cands[j].Status.Utilization()
			if ui != uj {
				return ui < uj
			}
			return cands[i].Status.ID < cands[j].Status.ID
		})
		return cands[0], nil
	}
	return Pick{}, fmt.Errorf("emergency pool: %w", model.ErrNoAvailableResponders)
}
