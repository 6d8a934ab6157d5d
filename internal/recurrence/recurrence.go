package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/medtrack/internal/model"
)

// Skip describes one time entry excluded from computation.
type Skip struct {
	Index int    `json:"index"`
	Value string `json:"value"`
	Err   string `json:"error"`
}

// SkippedError reports entries excluded from a schedule's computation.
// It is informational: the times returned with it are still valid.
type SkippedError struct {
	ScheduleID string
	Skips      []Skip
}

func (e *SkippedError) Error() string {
	parts := make([]string, len(e.Skips))
	for i, s := range e.Skips {
		parts[i] = fmt.Sprintf("times[%d]=%q: %s", s.Index, s.Value, s.Err)
	}
	return fmt.Sprintf("SCHEDULE_COMPUTATION_SKIPPED: schedule %s: %s", e.ScheduleID, strings.Join(parts, ", "))
}

// IsSkipped reports whether err carries skipped entries.
// Uses errors.As to handle wrapped errors.
func IsSkipped(err error) bool {
	var se *SkippedError
	return errors.As(err, &se)
}

// ErrUnsupportedScheme is returned for a scheme outside the closed set.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// PlannedTimes returns the planned times of s on date, ascending.
//
// The result is empty when the date falls outside [StartDate, EndDate],
// when the variant's rule does not fire on date, and always for PRN.
// A *SkippedError is returned together with the valid times when some
// time entries were malformed; any other error means nothing was computed.
func PlannedTimes(s *model.Schedule, date model.Date) ([]model.TimeOfDay, error) {
	if !s.ActiveOn(date) {
		return nil, nil
	}
	daysSinceStart := date.DaysSince(s.StartDate)

	var raw []string
	switch sc := s.Scheme.(type) {
	case model.Daily:
		raw = sc.Times
	case model.Weekly:
		if !containsWeekday(sc.Weekdays, int(date.Weekday())) {
			return nil, nil
		}
		raw = sc.Times
	case model.IntervalDays:
		if sc.Interval < 1 {
			return nil, fmt.Errorf("schedule %s: interval %d: %w", s.ID, sc.Interval, ErrUnsupportedScheme)
		}
		if daysSinceStart < 0 || daysSinceStart%sc.Interval != 0 {
			return nil, nil
		}
		raw = sc.Times
	case model.IntervalHours:
		return hourlyTimes(s.ID, sc.Interval)
	case model.CourseDays:
		if daysSinceStart < 0 || daysSinceStart >= sc.Days {
			return nil, nil
		}
		raw = sc.Times
	case model.PRN:
		// Logged ad hoc; limits are enforced at log time.
		return nil, nil
	default:
		return nil, fmt.Errorf("schedule %s: %T: %w", s.ID, s.Scheme, ErrUnsupportedScheme)
	}

	return parseTimes(s.ID, raw)
}

// hourlyTimes synthesizes a day of times from local midnight stepping by
// interval hours, up to the end of the day.
func hourlyTimes(scheduleID string, interval int) ([]model.TimeOfDay, error) {
	if interval < 1 {
		return nil, fmt.Errorf("schedule %s: interval %d: %w", scheduleID, interval, ErrUnsupportedScheme)
	}
	var out []model.TimeOfDay
	for h := 0; h < 24; h += interval {
		out = append(out, model.TimeOfDay{Hour: h})
	}
	return out, nil
}

func parseTimes(scheduleID string, raw []string) ([]model.TimeOfDay, error) {
	out := make([]model.TimeOfDay, 0, len(raw))
	var skips []Skip
	for i, s := range raw {
		t, err := model.ParseTimeOfDay(s)
		if err != nil {
			skips = append(skips, Skip{Index: i, Value: s, Err: err.Error()})
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Minutes() < out[j].Minutes() })

	if len(skips) > 0 {
		return out, &SkippedError{ScheduleID: scheduleID, Skips: skips}
	}
	return out, nil
}

func containsWeekday(weekdays []int, wd int) bool {
	for _, d := range weekdays {
		if d == wd {
			return true
		}
	}
	return false
}

// OccursOn reports whether s plans at least one dose on date.
// Skipped entries do not count as occurrences.
func OccursOn(s *model.Schedule, date model.Date) bool {
	times, err := PlannedTimes(s, date)
	if err != nil && !IsSkipped(err) {
		return false
	}
	return len(times) > 0
}
