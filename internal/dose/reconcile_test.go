package dose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medtrack/internal/model"
)

func TestInstanceID_RoundTrip(t *testing.T) {
	id := InstanceID("sched_with_underscores", day1, model.TimeOfDay{Hour: 8, Minute: 5})
	assert.Equal(t, "sched_with_underscores_2024-01-01_08:05", id)

	sid, d, tod, err := ParseInstanceID(id)
	require.NoError(t, err)
	assert.Equal(t, "sched_with_underscores", sid)
	assert.Equal(t, day1, d)
	assert.Equal(t, model.TimeOfDay{Hour: 8, Minute: 5}, tod)

	for _, bad := range []string{"", "nodate", "s_2024-13-01_08:00", "s_2024-01-01_8am"} {
		_, _, _, err := ParseInstanceID(bad)
		assert.Error(t, err, bad)
	}
}

func TestInstancesForDate_Pending(t *testing.T) {
	f := newFixture(t)
	got := f.instances()
	require.Len(t, got, 2)

	assert.Equal(t, morning, got[0].ID)
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Equal(t, "Aspirin", got[0].MedicationName)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), got[0].PlannedAt)
	assert.Equal(t, got[0].PlannedAt, got[0].EffectiveAt)
	assert.Equal(t, "sched-1_2024-01-01_20:00", got[1].ID)
}

func TestInstancesForDate_PausedAndOtherProfilesExcluded(t *testing.T) {
	f := newFixture(t)
	f.st.Profiles = append(f.st.Profiles, model.Profile{ID: "profile-2", Name: "Kid"})
	f.st.Schedules = append(f.st.Schedules, model.Schedule{
		ID: "sched-2", ProfileID: "profile-2", MedicationID: "med-1",
		Scheme: model.Daily{Times: []string{"09:00"}}, StartDate: day1,
	})
	assert.Len(t, f.instances(), 2)

	f.st.Schedules[0].IsPaused = true
	assert.Empty(t, f.instances())
}

func TestInstancesForDate_BadScheduleDoesNotAbortDay(t *testing.T) {
	f := newFixture(t)
	f.st.Schedules = append(f.st.Schedules,
		model.Schedule{
			ID: "sched-bad", ProfileID: model.DefaultProfileID, MedicationID: "med-1",
			Scheme: model.IntervalDays{Interval: 0, Times: []string{"09:00"}}, StartDate: day1,
		},
		model.Schedule{
			ID: "sched-partial", ProfileID: model.DefaultProfileID, MedicationID: "med-1",
			Scheme: model.Daily{Times: []string{"nope", "12:00"}}, StartDate: day1,
		},
	)
	got := f.instances()
	require.Len(t, got, 3)
	assert.Equal(t, "sched-partial_2024-01-01_12:00", got[1].ID)
}

func TestInstancesForDate_SortedByEffectiveTimeThenName(t *testing.T) {
	f := newFixture(t)
	f.st.Medications = append(f.st.Medications,
		model.Medication{ID: "med-2", ProfileID: model.DefaultProfileID, Name: "zinc"},
		model.Medication{ID: "med-3", ProfileID: model.DefaultProfileID, Name: "Biotin"},
	)
	f.st.Schedules = append(f.st.Schedules,
		model.Schedule{ID: "sched-z", ProfileID: model.DefaultProfileID, MedicationID: "med-2",
			Scheme: model.Daily{Times: []string{"08:00"}}, StartDate: day1},
		model.Schedule{ID: "sched-b", ProfileID: model.DefaultProfileID, MedicationID: "med-3",
			Scheme: model.Daily{Times: []string{"08:00"}}, StartDate: day1},
	)
	got := f.instances()
	require.Len(t, got, 4)
	names := []string{got[0].MedicationName, got[1].MedicationName, got[2].MedicationName}
	assert.Equal(t, []string{"Aspirin", "Biotin", "zinc"}, names)

	// Snoozing the morning Aspirin past 20:00 moves it to the end.
	f.clock.Set(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	f.record(t, ActionSnooze, morning, snoozeFor(13*time.Hour))
	got = f.instances()
	assert.Equal(t, morning, got[3].ID)
}

func TestInstancesForDate_IsPureAndDeterministic(t *testing.T) {
	f := newFixture(t)
	f.record(t, ActionTake, morning)
	before, err := model.MarshalState(f.st)
	require.NoError(t, err)

	a := f.instances()
	b := f.instances()
	assert.Equal(t, a, b)

	after, err := model.MarshalState(f.st)
	require.NoError(t, err)
	assert.Equal(t, before, after, "queries never mutate the document")
}

func TestInstancesForDate_TimezoneShiftsPlannedInstant(t *testing.T) {
	f := newFixture(t)
	f.st.Settings.Timezone = "America/New_York"
	got := f.instances()
	require.NotEmpty(t, got)
	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), got[0].PlannedAt)
}

func TestReconcile_SnoozeExpiredRevertsToPendingAtTarget(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	f.record(t, ActionSnooze, morning, snoozeFor(30*time.Minute))

	got := f.instances()
	assert.Equal(t, StatusSnoozed, got[0].Status)
	require.NotNil(t, got[0].SnoozedUntil)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC), *got[0].SnoozedUntil)

	f.clock.Set(time.Date(2024, 1, 1, 8, 31, 0, 0, time.UTC))
	got = f.instances()
	assert.Equal(t, StatusPending, got[0].Status)
	assert.Nil(t, got[0].SnoozedUntil)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC), got[0].EffectiveAt)
}

func TestReconcile_TakenMatchesSnoozedInstant(t *testing.T) {
	f := newFixture(t)
	until := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	f.st.Append(model.Event{
		ID: "p1", TS: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), Type: model.EventDosePostponed,
		ProfileID: model.DefaultProfileID, EntityID: "sched-1",
		Metadata: map[string]any{
			model.MetaScheduleID:  "sched-1",
			model.MetaPlannedAt:   "2024-01-01T08:00:00Z",
			model.MetaSnoozeUntil: model.FormatInstant(until),
		},
	})
	// A writer that records the snoozed instant as plannedAt.
	f.st.Append(model.Event{
		ID: "t1", TS: time.Date(2024, 1, 1, 8, 32, 0, 0, time.UTC), Type: model.EventDoseTaken,
		ProfileID: model.DefaultProfileID, EntityID: "sched-1",
		Metadata: map[string]any{
			model.MetaScheduleID: "sched-1",
			model.MetaPlannedAt:  "2024-01-01T08:30:00Z",
		},
	})
	got := f.instances()
	assert.Equal(t, StatusTaken, got[0].Status)
	assert.Equal(t, "t1", got[0].EventID)
}

func TestReconcile_SnoozedInstantOnOtherOccurrenceIsNotShared(t *testing.T) {
	f := newFixture(t)
	f.st.Schedules[0].Scheme = model.Daily{TimesPerDay: 2, Times: []string{"08:00", "08:30"}}
	f.clock.Set(time.Date(2024, 1, 1, 8, 40, 0, 0, time.UTC))
	f.st.Append(model.Event{
		ID: "p1", TS: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), Type: model.EventDosePostponed,
		ProfileID: model.DefaultProfileID, EntityID: "sched-1",
		Metadata: map[string]any{
			model.MetaScheduleID:  "sched-1",
			model.MetaPlannedAt:   "2024-01-01T08:00:00Z",
			model.MetaSnoozeUntil: "2024-01-01T08:30:00Z",
		},
	})
	// 08:30 is an occurrence of its own, so this take belongs to it alone.
	f.st.Append(model.Event{
		ID: "t1", TS: time.Date(2024, 1, 1, 8, 31, 0, 0, time.UTC), Type: model.EventDoseTaken,
		ProfileID: model.DefaultProfileID, EntityID: "sched-1",
		Metadata: map[string]any{
			model.MetaScheduleID: "sched-1",
			model.MetaPlannedAt:  "2024-01-01T08:30:00Z",
		},
	})

	byID := make(map[string]Instance)
	for _, inst := range f.instances() {
		byID[inst.ID] = inst
	}
	assert.Equal(t, StatusPending, byID[morning].Status)
	assert.Equal(t, StatusTaken, byID["sched-1_2024-01-01_08:30"].Status)
	assert.Equal(t, "t1", byID["sched-1_2024-01-01_08:30"].EventID)
}

func TestIndexLog_SupersededSnoozes(t *testing.T) {
	events := []model.Event{
		{ID: "p1", Type: model.EventDosePostponed, Metadata: map[string]any{model.MetaDoseInstanceID: morning}},
		{ID: "p2", Type: model.EventDosePostponed, Metadata: map[string]any{model.MetaDoseInstanceID: morning, model.MetaTargetEventID: "p1"}},
		{ID: "u1", Type: model.EventDoseUndone, Metadata: map[string]any{model.MetaDoseInstanceID: morning, model.MetaTargetEventID: "p2"}},
	}
	ix := indexLog(events)
	assert.True(t, ix.superseded["p1"])
	assert.True(t, ix.undone["p2"])
	assert.False(t, ix.undone["p1"], "superseding is not undoing")
	assert.Empty(t, ix.postponed.byInstance[morning])
}

func TestReconcile_PlannedAtWithOffsetMatches(t *testing.T) {
	f := newFixture(t)
	f.st.Append(model.Event{
		ID: "s1", TS: time.Date(2024, 1, 1, 8, 1, 0, 0, time.UTC), Type: model.EventDoseSkipped,
		ProfileID: model.DefaultProfileID, EntityID: "sched-1",
		Metadata: map[string]any{
			model.MetaScheduleID: "sched-1",
			model.MetaPlannedAt:  "2024-01-01T09:00:00+01:00",
		},
	})
	assert.Equal(t, StatusSkipped, f.instances()[0].Status)
}
