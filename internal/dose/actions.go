package dose

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/medtrack/internal/inventory"
	"github.com/roach88/medtrack/internal/model"
)

// ActionKind names a user action on an occurrence.
type ActionKind string

const (
	ActionTake   ActionKind = "take"
	ActionSkip   ActionKind = "skip"
	ActionSnooze ActionKind = "snooze"
	ActionUndo   ActionKind = "undo"
)

// ParseActionKind validates an action name.
func ParseActionKind(s string) (ActionKind, error) {
	switch k := ActionKind(s); k {
	case ActionTake, ActionSkip, ActionSnooze, ActionUndo:
		return k, nil
	}
	return "", fmt.Errorf("unknown dose action %q", s)
}

// Action targets one occurrence by its instance id.
type Action struct {
	Kind       ActionKind
	InstanceID string
	// At is when the action happened; zero means now.
	At time.Time
	// SnoozeFor is the postponement length for ActionSnooze.
	SnoozeFor time.Duration
	Reason    string
}

// Outcome is the result of a recorded action.
type Outcome struct {
	Event     model.Event       `json:"event"`
	Instance  Instance          `json:"instance"`
	Inventory *inventory.Change `json:"inventory,omitempty"`
}

// Recorder appends dose events to a document and applies their side
// effects. It mutates the document in memory only; persisting is the
// caller's job.
type Recorder struct {
	rec    *Reconciler
	inv    *inventory.Handler
	ids    model.IDGenerator
	clock  model.Clock
	logger *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(inv *inventory.Handler, ids model.IDGenerator, clock model.Clock, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		rec:    NewReconciler(logger),
		inv:    inv,
		ids:    ids,
		clock:  clock,
		logger: logger,
	}
}

// Reconciler returns the reconciler the recorder evaluates against.
func (r *Recorder) Reconciler() *Reconciler { return r.rec }

// Record applies a to st.
func (r *Recorder) Record(st *model.AppState, a Action) (*Outcome, error) {
	now := r.clock.Now().UTC()
	at := a.At
	if at.IsZero() {
		at = now
	}
	at = at.UTC()

	scheduleID, date, t, err := ParseInstanceID(a.InstanceID)
	if err != nil {
		return nil, err
	}
	// Evaluate at the later of now and the action instant: a backdated
	// action sees the occurrence as it is now, a future-dated one as it
	// will be then.
	evalAt := now
	if at.After(evalAt) {
		evalAt = at
	}
	inst, err := r.rec.Instance(st, scheduleID, date, t, evalAt)
	if err != nil {
		return nil, err
	}
	s, _ := st.Schedule(scheduleID)

	out := &Outcome{}
	switch a.Kind {
	case ActionTake:
		if !inst.Actionable() {
			return nil, fmt.Errorf("take %s: %s: %w", inst.ID, inst.Status, ErrAlreadyRecorded)
		}
		e := r.doseEvent(model.EventDoseTaken, s, inst, at)
		if ch, ok := r.inv.ApplyTaken(st, s.ProfileID, s.MedicationID, s.DoseAmount, at); ok {
			e.Metadata[model.MetaDecremented] = ch.Applied()
			e.Metadata[model.MetaInventoryID] = ch.ItemID
			out.Inventory = ch
		}
		st.Append(e)
		out.Event = e

	case ActionSkip:
		if !inst.Actionable() {
			return nil, fmt.Errorf("skip %s: %s: %w", inst.ID, inst.Status, ErrAlreadyRecorded)
		}
		e := r.doseEvent(model.EventDoseSkipped, s, inst, at)
		if a.Reason != "" {
			e.Metadata[model.MetaReason] = a.Reason
		}
		st.Append(e)
		out.Event = e

	case ActionSnooze:
		if a.SnoozeFor <= 0 {
			return nil, fmt.Errorf("snooze %s: %w", inst.ID, ErrInvalidSnooze)
		}
		if !inst.Actionable() {
			return nil, fmt.Errorf("snooze %s: %s: %w", inst.ID, inst.Status, ErrAlreadyRecorded)
		}
		e := r.doseEvent(model.EventDosePostponed, s, inst, at)
		e.Metadata[model.MetaSnoozeUntil] = model.FormatInstant(at.Add(a.SnoozeFor))
		if inst.SnoozeEventID != "" {
			// The newest postponement governs; the earlier one stays in the log.
			e.Metadata[model.MetaTargetEventID] = inst.SnoozeEventID
		}
		st.Append(e)
		out.Event = e
		r.logger.Debug("dose snoozed", "instance_id", inst.ID, "for", formatMinutes(a.SnoozeFor))

	case ActionUndo:
		target := inst.EventID
		if target == "" {
			target = inst.SnoozeEventID
		}
		if target == "" {
			return nil, fmt.Errorf("undo %s: %w", inst.ID, ErrNothingToUndo)
		}
		orig, _ := st.Event(target)
		e := r.doseEvent(model.EventDoseUndone, s, inst, at)
		e.Metadata[model.MetaTargetEventID] = target
		if orig != nil && orig.Type == model.EventDoseTaken {
			if amount, ok := orig.MetaFloat(model.MetaDecremented); ok {
				if ch, ok := r.inv.Restore(st, s.ProfileID, s.MedicationID, amount, at); ok {
					out.Inventory = ch
				}
			}
		}
		st.Append(e)
		out.Event = e

	default:
		return nil, fmt.Errorf("record %s: unknown action %q", inst.ID, a.Kind)
	}

	out.Instance, err = r.rec.Instance(st, scheduleID, date, t, evalAt)
	if err != nil {
		return nil, err
	}
	r.logger.Info("dose action recorded",
		"action", string(a.Kind), "instance_id", inst.ID, "event_id", out.Event.ID,
		"status", string(out.Instance.Status))
	return out, nil
}

func (r *Recorder) doseEvent(typ model.EventType, s *model.Schedule, inst Instance, at time.Time) model.Event {
	return model.Event{
		ID:        r.ids.NewID(),
		TS:        at,
		Type:      typ,
		ProfileID: s.ProfileID,
		EntityID:  s.ID,
		Metadata: map[string]any{
			model.MetaScheduleID:     s.ID,
			model.MetaPlannedAt:      model.FormatInstant(inst.PlannedAt),
			model.MetaDoseInstanceID: inst.ID,
		},
	}
}
