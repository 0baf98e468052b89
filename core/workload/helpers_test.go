package workload

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/core/profile"
	"github.com/kilianp07/crisismatch/infra/logger"
)

// 2024-03-06 is a Wednesday.
var testNow = time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)

type fakeStatus struct {
	mu sync.Mutex
	m  map[string]model.ResponderStatus
}

func newFakeStatus(sts ...model.ResponderStatus) *fakeStatus {
	f := &fakeStatus{m: map[string]model.ResponderStatus{}}
	for _, s := range sts {
		f.m[s.ID] = s
	}
	return f
}

func (f *fakeStatus) Get(id string) (model.ResponderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[id]
	if !ok {
		return s, fmt.Errorf("%s: %w", id, model.ErrResponderNotFound)
	}
	return s, nil
}

func (f *fakeStatus) Snapshot() []model.ResponderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ResponderStatus, 0, len(f.m))
	for _, s := range f.m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func newTestAssessor(status StatusSource, ps ...model.ResponderProfile) *Assessor {
	a := NewAssessor(DefaultConfig(), profile.NewMemoryStore(ps...), status, nil, logger.NopLogger{})
	a.SetClock(func() time.Time { return testNow })
	return a
}

// exhaust drives a responder into critical burnout: eight sessions without
// a break since 07:00 plus a poor wellness check.
func exhaust(a *Assessor, id string) {
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		start := time.Date(2024, 3, 6, 7+i, 0, 0, 0, time.UTC)
		sid := fmt.Sprintf("%s-s%d", id, i)
		a.RecordSessionStart(ctx, id, sid, start)
		a.RecordSessionEnd(ctx, id, sid, start.Add(50*time.Minute))
	}
	_ = a.RecordWellness(ctx, id, model.WellnessCheck{BurnoutScore: 1, StressLevel: 10, At: testNow})
}
