package dose

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/recurrence"
)

// occurrenceKey identifies a (schedule, instant) pair regardless of the
// zone offset an instant was written with.
type occurrenceKey struct {
	scheduleID string
	unixNano   int64
}

func keyOf(scheduleID string, t time.Time) occurrenceKey {
	return occurrenceKey{scheduleID: scheduleID, unixNano: t.UnixNano()}
}

// buckets groups events of one type by the occurrence they target. Events
// that carry a dose instance id are keyed by it; events written without
// one fall back to their (schedule, planned instant) pair.
type buckets struct {
	byInstance map[string][]*model.Event
	byInstant  map[occurrenceKey][]*model.Event
}

func newBuckets() buckets {
	return buckets{
		byInstance: make(map[string][]*model.Event),
		byInstant:  make(map[occurrenceKey][]*model.Event),
	}
}

func (b buckets) add(e *model.Event) {
	if id := e.MetaString(model.MetaDoseInstanceID); id != "" {
		b.byInstance[id] = append(b.byInstance[id], e)
		return
	}
	scheduleID := e.MetaString(model.MetaScheduleID)
	planned, ok := e.MetaTime(model.MetaPlannedAt)
	if scheduleID == "" || !ok {
		return
	}
	k := keyOf(scheduleID, planned)
	b.byInstant[k] = append(b.byInstant[k], e)
}

// logIndex buckets the live dose events of a log by occurrence. Buckets
// keep log order.
type logIndex struct {
	// undone holds the ids targeted by a DOSE_UNDONE.
	undone map[string]bool
	// superseded holds postponements replaced by a later snooze. They stay
	// replaced even when the replacing snooze is undone.
	superseded map[string]bool
	taken      buckets
	skipped    buckets
	postponed  buckets
}

func indexLog(events []model.Event) *logIndex {
	ix := &logIndex{
		undone:     make(map[string]bool),
		superseded: make(map[string]bool),
		taken:      newBuckets(),
		skipped:    newBuckets(),
		postponed:  newBuckets(),
	}
	for i := range events {
		e := &events[i]
		id := e.MetaString(model.MetaTargetEventID)
		if id == "" {
			continue
		}
		switch e.Type {
		case model.EventDoseUndone:
			ix.undone[id] = true
		case model.EventDosePostponed:
			ix.superseded[id] = true
		}
	}
	for i := range events {
		e := &events[i]
		if ix.undone[e.ID] || ix.superseded[e.ID] {
			continue
		}
		switch e.Type {
		case model.EventDoseTaken:
			ix.taken.add(e)
		case model.EventDoseSkipped:
			ix.skipped.add(e)
		case model.EventDosePostponed:
			ix.postponed.add(e)
		}
	}
	return ix
}

// earliest returns the event with the earliest timestamp across lists.
func earliest(lists ...[]*model.Event) *model.Event {
	var best *model.Event
	for _, l := range lists {
		for _, e := range l {
			if best == nil || e.TS.Before(best.TS) {
				best = e
			}
		}
	}
	return best
}

// newest returns the event with the latest timestamp; ties go to the later
// log position.
func newest(lists ...[]*model.Event) *model.Event {
	var best *model.Event
	for _, l := range lists {
		for _, e := range l {
			if best == nil || !e.TS.Before(best.TS) {
				best = e
			}
		}
	}
	return best
}

// isPlanned reports whether at is itself a planned occurrence of s.
func isPlanned(s *model.Schedule, at time.Time, loc *time.Location) bool {
	date := model.DateOf(at.In(loc))
	times, err := recurrence.PlannedTimes(s, date)
	if err != nil && !recurrence.IsSkipped(err) {
		return false
	}
	for _, t := range times {
		if t.On(date, loc).Equal(at) {
			return true
		}
	}
	return false
}

// Reconciler derives dose instances. It holds no document state and is
// safe for concurrent use.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// InstancesForDate returns every occurrence planned on date for the
// profile's non-paused schedules, reconciled against the log, sorted by
// effective time. Schedules that fail to compute are logged and left out;
// they never abort the whole day.
func (r *Reconciler) InstancesForDate(st *model.AppState, profileID string, date model.Date, now time.Time) []Instance {
	ix := indexLog(st.Events)
	loc := st.Settings.Location()

	var out []Instance
	for _, s := range st.SchedulesFor(profileID) {
		if s.IsPaused {
			continue
		}
		times, err := recurrence.PlannedTimes(s, date)
		if err != nil {
			var skipped *recurrence.SkippedError
			if !errors.As(err, &skipped) {
				r.logger.Warn("schedule computation failed",
					"schedule_id", s.ID, "date", date.String(), "error", err)
				continue
			}
			r.logger.Warn("schedule computation skipped entries",
				"schedule_id", s.ID, "date", date.String(), "skipped", len(skipped.Skips))
		}
		for _, t := range times {
			out = append(out, reconcile(st, ix, s, date, t, loc, now))
		}
	}
	sortInstances(out)
	return out
}

// Instance reconciles a single occurrence. It fails when the schedule does
// not exist or has no occurrence at date and t.
func (r *Reconciler) Instance(st *model.AppState, scheduleID string, date model.Date, t model.TimeOfDay, now time.Time) (Instance, error) {
	s, ok := st.Schedule(scheduleID)
	if !ok {
		return Instance{}, fmt.Errorf("schedule %s: %w", scheduleID, ErrUnknownSchedule)
	}
	times, err := recurrence.PlannedTimes(s, date)
	if err != nil && !recurrence.IsSkipped(err) {
		return Instance{}, fmt.Errorf("compute schedule %s: %w", scheduleID, err)
	}
	for _, pt := range times {
		if pt == t {
			return reconcile(st, indexLog(st.Events), s, date, t, st.Settings.Location(), now), nil
		}
	}
	return Instance{}, fmt.Errorf("schedule %s at %s %s: %w", scheduleID, date, t, ErrNotPlanned)
}

func reconcile(st *model.AppState, ix *logIndex, s *model.Schedule, date model.Date, t model.TimeOfDay, loc *time.Location, now time.Time) Instance {
	planned := t.On(date, loc).UTC()
	inst := Instance{
		ID:           InstanceID(s.ID, date, t),
		ProfileID:    s.ProfileID,
		ScheduleID:   s.ID,
		MedicationID: s.MedicationID,
		PlannedDate:  date,
		PlannedTime:  t,
		PlannedAt:    planned,
		EffectiveAt:  planned,
		Status:       StatusPending,
		DoseAmount:   s.DoseAmount,
		DoseUnit:     s.DoseUnit,
	}
	if m, ok := st.Medication(s.MedicationID); ok {
		inst.MedicationName = m.Name
	}

	orig := keyOf(s.ID, planned)
	var snoozeUntil time.Time
	if snooze := newest(ix.postponed.byInstance[inst.ID], ix.postponed.byInstant[orig]); snooze != nil {
		if until, ok := snooze.MetaTime(model.MetaSnoozeUntil); ok {
			snoozeUntil = until.UTC()
			inst.SnoozeEventID = snooze.ID
			inst.EffectiveAt = snoozeUntil
		}
	}

	// Events without an instance id may name the snoozed instant instead of
	// the planned one, unless that instant is another occurrence.
	var viaSnooze occurrenceKey
	if !snoozeUntil.IsZero() && !isPlanned(s, snoozeUntil, loc) {
		viaSnooze = keyOf(s.ID, snoozeUntil)
	}
	lookup := func(b buckets) [][]*model.Event {
		lists := [][]*model.Event{b.byInstance[inst.ID], b.byInstant[orig]}
		if viaSnooze != (occurrenceKey{}) {
			lists = append(lists, b.byInstant[viaSnooze])
		}
		return lists
	}

	if e := earliest(lookup(ix.taken)...); e != nil {
		inst.Status = StatusTaken
		inst.EventID = e.ID
		acted := e.TS.UTC()
		inst.ActedAt = &acted
		inst.IsLate = acted.Truncate(time.Minute).After(planned)
		return inst
	}
	if e := earliest(lookup(ix.skipped)...); e != nil {
		inst.Status = StatusSkipped
		inst.EventID = e.ID
		acted := e.TS.UTC()
		inst.ActedAt = &acted
		return inst
	}
	if !snoozeUntil.IsZero() && snoozeUntil.After(now) {
		inst.Status = StatusSnoozed
		inst.EventID = inst.SnoozeEventID
		inst.SnoozedUntil = &snoozeUntil
	}
	return inst
}

// sortInstances orders by effective time, then by medication name under
// the root collation, then by id so output is total.
func sortInstances(out []Instance) {
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EffectiveAt.Equal(b.EffectiveAt) {
			return a.EffectiveAt.Before(b.EffectiveAt)
		}
		if c := col.CompareString(a.MedicationName, b.MedicationName); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}

// formatMinutes renders a duration in whole minutes for log fields.
func formatMinutes(d time.Duration) string {
	return strconv.Itoa(int(d/time.Minute)) + "m"
}
