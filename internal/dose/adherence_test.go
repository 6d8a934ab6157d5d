package dose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/medtrack/internal/model"
)

func TestAdherence(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2024, 1, 1, 8, 0, 30, 0, time.UTC))
	f.record(t, ActionTake, morning)

	f.clock.Set(time.Date(2024, 1, 2, 20, 30, 0, 0, time.UTC))
	f.record(t, ActionTake, "sched-1_2024-01-02_20:00")
	f.record(t, ActionSkip, "sched-1_2024-01-02_08:00")

	a := f.rec.Reconciler().Adherence(f.st, model.DefaultProfileID, day1, day1.AddDays(2), f.clock.Now())
	// Day 3 is in the future and does not count.
	assert.Equal(t, 4, a.Planned)
	assert.Equal(t, 2, a.Taken)
	assert.Equal(t, 1, a.Late)
	assert.Equal(t, 1, a.Skipped)
	assert.Equal(t, 1, a.Missed)
	assert.InDelta(t, 0.5, a.Ratio, 1e-9)
}

func TestAdherence_NothingDue(t *testing.T) {
	f := newFixture(t)
	a := f.rec.Reconciler().Adherence(f.st, model.DefaultProfileID, day1, day1, t0)
	assert.Zero(t, a.Planned)
	assert.Zero(t, a.Ratio)
}
