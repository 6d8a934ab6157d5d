package dose

import (
	"fmt"
	"time"

	"github.com/roach88/medtrack/internal/model"
)

// PRNDose is one logged as-needed dose.
type PRNDose struct {
	EventID    string    `json:"eventId"`
	ScheduleID string    `json:"scheduleId"`
	TakenAt    time.Time `json:"takenAt"`
	Amount     float64   `json:"amount"`
}

// PRNLog returns the non-undone as-needed doses of a schedule, oldest first.
func PRNLog(st *model.AppState, scheduleID string) []PRNDose {
	ix := indexLog(st.Events)
	var out []PRNDose
	for i := range st.Events {
		e := &st.Events[i]
		if e.Type != model.EventDoseTaken || !e.MetaBool(model.MetaPRN) || ix.undone[e.ID] {
			continue
		}
		if e.MetaString(model.MetaScheduleID) != scheduleID {
			continue
		}
		amount, _ := e.MetaFloat(model.MetaAmount)
		out = append(out, PRNDose{EventID: e.ID, ScheduleID: scheduleID, TakenAt: e.TS.UTC(), Amount: amount})
	}
	return out
}

// RecordPRN logs an as-needed dose taken at at (zero means now), enforcing
// the schedule's minimum interval and daily maximum.
func (r *Recorder) RecordPRN(st *model.AppState, scheduleID string, at time.Time) (*Outcome, error) {
	s, ok := st.Schedule(scheduleID)
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, ErrUnknownSchedule)
	}
	prn, ok := s.Scheme.(model.PRN)
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, ErrNotPRN)
	}
	if at.IsZero() {
		at = r.clock.Now()
	}
	at = at.UTC()
	loc := st.Settings.Location()
	day := model.DateOf(at.In(loc))

	var today int
	var last time.Time
	for _, d := range PRNLog(st, scheduleID) {
		if d.TakenAt.After(at) {
			continue
		}
		if d.TakenAt.After(last) {
			last = d.TakenAt
		}
		if model.DateOf(d.TakenAt.In(loc)) == day {
			today++
		}
	}
	if prn.MinIntervalHours != nil && !last.IsZero() {
		next := last.Add(time.Duration(*prn.MinIntervalHours * float64(time.Hour)))
		if at.Before(next) {
			return nil, fmt.Errorf("schedule %s: next dose allowed at %s: %w",
				scheduleID, model.FormatInstant(next), ErrPRNTooSoon)
		}
	}
	if prn.MaxPerDay != nil && today >= *prn.MaxPerDay {
		return nil, fmt.Errorf("schedule %s: %d of %d: %w", scheduleID, today, *prn.MaxPerDay, ErrPRNDailyLimit)
	}

	local := at.In(loc)
	tod := model.TimeOfDay{Hour: local.Hour(), Minute: local.Minute()}
	inst := Instance{
		ID:           InstanceID(s.ID, day, tod),
		ProfileID:    s.ProfileID,
		ScheduleID:   s.ID,
		MedicationID: s.MedicationID,
		PlannedDate:  day,
		PlannedTime:  tod,
		PlannedAt:    at,
		EffectiveAt:  at,
		Status:       StatusTaken,
		ActedAt:      &at,
		DoseAmount:   s.DoseAmount,
		DoseUnit:     s.DoseUnit,
	}
	if m, ok := st.Medication(s.MedicationID); ok {
		inst.MedicationName = m.Name
	}

	e := r.doseEvent(model.EventDoseTaken, s, inst, at)
	e.Metadata[model.MetaPRN] = true
	e.Metadata[model.MetaAmount] = s.DoseAmount
	out := &Outcome{}
	if ch, ok := r.inv.ApplyTaken(st, s.ProfileID, s.MedicationID, s.DoseAmount, at); ok {
		e.Metadata[model.MetaDecremented] = ch.Applied()
		e.Metadata[model.MetaInventoryID] = ch.ItemID
		out.Inventory = ch
	}
	st.Append(e)
	inst.EventID = e.ID
	out.Event = e
	out.Instance = inst

	r.logger.Info("as-needed dose recorded", "schedule_id", s.ID, "event_id", e.ID)
	return out, nil
}

// UndoPRN neutralizes a logged as-needed dose and restores its stock.
func (r *Recorder) UndoPRN(st *model.AppState, eventID string) (*Outcome, error) {
	orig, ok := st.Event(eventID)
	if !ok || orig.Type != model.EventDoseTaken || !orig.MetaBool(model.MetaPRN) {
		return nil, fmt.Errorf("undo as-needed dose %s: %w", eventID, ErrNothingToUndo)
	}
	if indexLog(st.Events).undone[eventID] {
		return nil, fmt.Errorf("undo as-needed dose %s: already undone: %w", eventID, ErrNothingToUndo)
	}
	now := r.clock.Now().UTC()
	target := *orig
	e := model.Event{
		ID:        r.ids.NewID(),
		TS:        now,
		Type:      model.EventDoseUndone,
		ProfileID: target.ProfileID,
		EntityID:  target.EntityID,
		Metadata: map[string]any{
			model.MetaScheduleID:    target.MetaString(model.MetaScheduleID),
			model.MetaTargetEventID: target.ID,
		},
	}
	out := &Outcome{}
	if amount, ok := target.MetaFloat(model.MetaDecremented); ok {
		s, _ := st.Schedule(target.MetaString(model.MetaScheduleID))
		if s != nil {
			if ch, ok := r.inv.Restore(st, s.ProfileID, s.MedicationID, amount, now); ok {
				out.Inventory = ch
			}
		}
	}
	st.Append(e)
	out.Event = e
	return out, nil
}
