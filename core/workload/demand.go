package workload

import (
	"sync"
	"time"
)

// demandLog counts match requests per UTC hour for forecasting.
type demandLog struct {
	mu    sync.Mutex
	hours map[int64]float64
	first time.Time
	weeks int
	// pruned is the hour key of the latest hour seen; older entries are
	// dropped when it advances.
	pruned int64
}

func newDemandLog(weeks int) *demandLog {
	if weeks <= 0 {
		weeks = 8
	}
	return &demandLog{hours: make(map[int64]float64), weeks: weeks}
}

func hourKey(t time.Time) int64 { return t.UTC().Truncate(time.Hour).Unix() }

func (d *demandLog) add(at time.Time, n float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := at.UTC().Truncate(time.Hour)
	d.hours[hourKey(h)] += n
	if d.first.IsZero() || h.Before(d.first) {
		d.first = h
	}
	if k := hourKey(h); k > d.pruned {
		d.pruned = k
		d.prune(h)
	}
}

func (d *demandLog) prune(latest time.Time) {
	cutoff := latest.Add(-time.Duration(d.weeks+1) * 7 * 24 * time.Hour).Unix()
	for k := range d.hours {
		if k < cutoff {
			delete(d.hours, k)
		}
	}
}

// samples returns, oldest first, the request count observed at the same
// hour-of-week as slot in each of the past weeks that the log covers.
func (d *demandLog) samples(slot, now time.Time) []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.first.IsZero() {
		return nil
	}
	slot = slot.UTC().Truncate(time.Hour)
	const week = 7 * 24 * time.Hour
	// Walk back to the latest past occurrence of this hour-of-week.
	ref := slot
	for !ref.Before(now.UTC().Truncate(time.Hour)) {
		ref = ref.Add(-week)
	}
	var out []float64
	for i := d.weeks - 1; i >= 0; i-- {
		t := ref.Add(-time.Duration(i) * week)
		if t.Before(d.first) {
			continue
		}
		out = append(out, d.hours[t.Unix()])
	}
	return out
}

// RecordDemand registers one incoming match request for forecasting.
func (a *Assessor) RecordDemand(at time.Time) { a.demand.add(at, 1) }

// SeedDemand registers n historical requests in the hour containing at.
func (a *Assessor) SeedDemand(at time.Time, n float64) { a.demand.add(at, n) }
