package recurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medtrack/internal/model"
)

func schedule(sc model.Scheme, start string) *model.Schedule {
	return &model.Schedule{ID: "sched-1", MedicationID: "med-1", Scheme: sc, StartDate: model.MustDate(start)}
}

func times(t *testing.T, s *model.Schedule, date string) []string {
	t.Helper()
	got, err := PlannedTimes(s, model.MustDate(date))
	require.NoError(t, err)
	out := make([]string, len(got))
	for i, tod := range got {
		out[i] = tod.String()
	}
	return out
}

func TestPlannedTimes_Daily(t *testing.T) {
	s := schedule(model.Daily{TimesPerDay: 2, Times: []string{"20:00", "08:00"}}, "2024-01-01")
	assert.Equal(t, []string{"08:00", "20:00"}, times(t, s, "2024-01-01"), "ascending regardless of input order")
	assert.Equal(t, []string{"08:00", "20:00"}, times(t, s, "2024-07-15"))
	assert.Empty(t, times(t, s, "2023-12-31"), "before start date")
}

// Weekly on Mon/Wed/Fri: a Tuesday plans nothing, a Wednesday plans 08:00.
func TestPlannedTimes_WeeklyScenario(t *testing.T) {
	s := schedule(model.Weekly{Weekdays: []int{1, 3, 5}, Times: []string{"08:00"}}, "2024-01-01")

	assert.Empty(t, times(t, s, "2024-01-02"), "Tuesday")
	assert.Equal(t, []string{"08:00"}, times(t, s, "2024-01-03"), "Wednesday")
	assert.Equal(t, []string{"08:00"}, times(t, s, "2024-01-05"), "Friday")
	assert.Empty(t, times(t, s, "2024-01-07"), "Sunday")
}

// Every second day from day 0: day 4 occurs, day 5 does not.
func TestPlannedTimes_IntervalDaysScenario(t *testing.T) {
	s := schedule(model.IntervalDays{Interval: 2, Times: []string{"09:00"}}, "2024-01-01")

	assert.Equal(t, []string{"09:00"}, times(t, s, "2024-01-01"), "day 0")
	assert.Equal(t, []string{"09:00"}, times(t, s, "2024-01-05"), "day 4")
	assert.Empty(t, times(t, s, "2024-01-06"), "day 5")
	assert.Empty(t, times(t, s, "2023-12-30"), "negative offsets never occur")
}

func TestPlannedTimes_IntervalHours(t *testing.T) {
	s := schedule(model.IntervalHours{Interval: 6}, "2024-01-01")
	assert.Equal(t, []string{"00:00", "06:00", "12:00", "18:00"}, times(t, s, "2024-01-03"))

	s = schedule(model.IntervalHours{Interval: 5}, "2024-01-01")
	assert.Equal(t, []string{"00:00", "05:00", "10:00", "15:00", "20:00"}, times(t, s, "2024-01-03"))

	s = schedule(model.IntervalHours{Interval: 1}, "2024-01-01")
	assert.Len(t, times(t, s, "2024-01-03"), 24)
}

func TestPlannedTimes_CourseDays(t *testing.T) {
	s := schedule(model.CourseDays{Days: 3, Times: []string{"12:00"}}, "2024-01-01")
	assert.Equal(t, []string{"12:00"}, times(t, s, "2024-01-01"))
	assert.Equal(t, []string{"12:00"}, times(t, s, "2024-01-03"))
	assert.Empty(t, times(t, s, "2024-01-04"), "course is over after 3 days")
}

func TestPlannedTimes_PRNNeverPlans(t *testing.T) {
	s := schedule(model.PRN{}, "2024-01-01")
	assert.Empty(t, times(t, s, "2024-01-01"))
}

func TestPlannedTimes_EndDateClips(t *testing.T) {
	end := model.MustDate("2024-01-02")
	s := schedule(model.Daily{Times: []string{"08:00"}}, "2024-01-01")
	s.EndDate = &end

	assert.Equal(t, []string{"08:00"}, times(t, s, "2024-01-02"), "end date is inclusive")
	assert.Empty(t, times(t, s, "2024-01-03"))

	hourly := schedule(model.IntervalHours{Interval: 8}, "2024-01-01")
	hourly.EndDate = &end
	assert.Empty(t, times(t, hourly, "2024-01-03"), "clipping applies to every variant")
}

func TestPlannedTimes_MalformedTimeSkipped(t *testing.T) {
	s := schedule(model.Daily{Times: []string{"08:00", "noon", "ab:cd", "21:30"}}, "2024-01-01")

	got, err := PlannedTimes(s, model.MustDate("2024-01-01"))
	require.Error(t, err)
	assert.True(t, IsSkipped(err))
	assert.Contains(t, err.Error(), "SCHEDULE_COMPUTATION_SKIPPED")

	var se *SkippedError
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Skips, 2)
	assert.Equal(t, []model.TimeOfDay{{Hour: 8}, {Hour: 21, Minute: 30}}, got, "valid entries survive")
}

func TestPlannedTimes_Deterministic(t *testing.T) {
	schedules := []*model.Schedule{
		schedule(model.Daily{Times: []string{"08:00", "08:00", "13:15"}}, "2024-01-01"),
		schedule(model.Weekly{Weekdays: []int{0, 2, 4, 6}, Times: []string{"07:00"}}, "2024-01-01"),
		schedule(model.IntervalDays{Interval: 3, Times: []string{"10:00"}}, "2024-01-01"),
		schedule(model.IntervalHours{Interval: 7}, "2024-01-01"),
		schedule(model.CourseDays{Days: 10, Times: []string{"22:00"}}, "2024-01-01"),
	}

	date := model.MustDate("2024-01-01")
	for i := 0; i < 30; i++ {
		for _, s := range schedules {
			first, err1 := PlannedTimes(s, date)
			second, err2 := PlannedTimes(s, date)
			require.NoError(t, err1)
			require.NoError(t, err2)
			assert.Equal(t, first, second, "schedule %T on %s", s.Scheme, date)
		}
		date = date.AddDays(1)
	}

	// Duplicates are a multiset, not a set.
	assert.Equal(t, []string{"08:00", "08:00", "13:15"}, times(t, schedules[0], "2024-01-01"))
}

func TestPlannedTimes_UnsupportedScheme(t *testing.T) {
	s := schedule(&model.Daily{Times: []string{"08:00"}}, "2024-01-01")
	_, err := PlannedTimes(s, model.MustDate("2024-01-01"))
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.False(t, IsSkipped(err))
}

func TestOccursOn(t *testing.T) {
	s := schedule(model.Weekly{Weekdays: []int{3}, Times: []string{"bad", "08:00"}}, "2024-01-01")
	assert.True(t, OccursOn(s, model.MustDate("2024-01-03")))
	assert.False(t, OccursOn(s, model.MustDate("2024-01-04")))
}
