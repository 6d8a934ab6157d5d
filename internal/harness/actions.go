package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/inventory"
	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/tracker"
)

// actionFunc performs one scenario action and returns its result as a
// JSON-shaped value.
type actionFunc func(ctx context.Context, h *Harness, args map[string]any) (any, error)

// actions maps scenario action names to tracker operations.
var actions = map[string]actionFunc{
	"profile.add":      profileAdd,
	"profile.guardian": profileGuardian,
	"profile.use":      profileUse,
	"contact.add":      contactAdd,
	"med.add":          medAdd,
	"inventory.set":    inventorySet,
	"schedule.add":     scheduleAdd,
	"schedule.pause":   schedulePaused(true),
	"schedule.resume":  schedulePaused(false),
	"dose.take":        doseAction(dose.ActionTake),
	"dose.skip":        doseAction(dose.ActionSkip),
	"dose.snooze":      doseAction(dose.ActionSnooze),
	"dose.undo":        doseAction(dose.ActionUndo),
	"prn.take":         prnTake,
	"prn.undo":         prnUndo,
	"alerts.trigger":   alertsTrigger,
	"alert.ack":        alertAck,
}

func (h *Harness) invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	fn, ok := actions[name]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return fn(ctx, h, args)
}

func profileAdd(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	p, err := h.tracker.AddProfile(ctx, tracker.ProfileInput{
		Name:                  str(args, "name"),
		GuardianModeEnabled:   boolean(args, "guardian"),
		GraceWindowMinutes:    int(num(args, "grace")),
		FollowUpWindowMinutes: int(num(args, "follow_up")),
	})
	if err != nil {
		return nil, err
	}
	return toMap(p), nil
}

func profileGuardian(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	p, err := h.tracker.UpdateGuardian(ctx, str(args, "profile"), tracker.ProfileInput{
		GuardianModeEnabled:   boolean(args, "enabled"),
		GraceWindowMinutes:    int(num(args, "grace")),
		FollowUpWindowMinutes: int(num(args, "follow_up")),
	})
	if err != nil {
		return nil, err
	}
	return toMap(p), nil
}

func profileUse(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	return nil, h.tracker.SetActiveProfile(ctx, str(args, "profile"))
}

func contactAdd(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	c, err := h.tracker.AddGuardianContact(ctx, model.GuardianContact{
		ProfileID: str(args, "profile"),
		Name:      str(args, "name"),
		Phone:     str(args, "phone"),
		Email:     str(args, "email"),
	})
	if err != nil {
		return nil, err
	}
	return toMap(c), nil
}

func medAdd(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	m, err := h.tracker.AddMedication(ctx, model.Medication{
		ID:        str(args, "id"),
		ProfileID: str(args, "profile"),
		Name:      str(args, "name"),
		Form:      str(args, "form"),
		Strength:  str(args, "strength"),
	})
	if err != nil {
		return nil, err
	}
	return toMap(m), nil
}

func inventorySet(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	ch, err := h.tracker.AdjustInventory(ctx, inventory.Adjustment{
		ProfileID:         str(args, "profile"),
		MedicationID:      str(args, "medication"),
		Quantity:          num(args, "quantity"),
		Unit:              str(args, "unit"),
		LowStockThreshold: num(args, "threshold"),
		Reason:            str(args, "reason"),
	})
	if err != nil {
		return nil, err
	}
	return toMap(ch), nil
}

// scheduleAdd builds a daily schedule from times, or any variant from a
// tagged scheme map. The start date defaults to today and the dose to 1.
func scheduleAdd(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	s := model.Schedule{
		ID:           str(args, "id"),
		MedicationID: str(args, "medication"),
		StartDate:    h.today(),
		DoseAmount:   1,
		DoseUnit:     str(args, "unit"),
	}
	if v, ok := args["dose"]; ok {
		s.DoseAmount = toFloat(v)
	}

	switch raw, ok := args["scheme"]; {
	case ok:
		data, err := json.Marshal(normalize(raw))
		if err != nil {
			return nil, fmt.Errorf("encode scheme: %w", err)
		}
		sc, err := model.UnmarshalScheme(data)
		if err != nil {
			return nil, err
		}
		s.Scheme = sc
	default:
		times := strs(args, "times")
		s.Scheme = model.Daily{TimesPerDay: len(times), Times: times}
	}

	if v := str(args, "start"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		s.StartDate = d
	}
	if v := str(args, "end"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		s.EndDate = &d
	}

	created, err := h.tracker.CreateSchedule(ctx, s)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": created.ID, "profileId": created.ProfileID}, nil
}

func schedulePaused(paused bool) actionFunc {
	return func(ctx context.Context, h *Harness, args map[string]any) (any, error) {
		return nil, h.tracker.SetSchedulePaused(ctx, str(args, "schedule"), paused)
	}
}

// doseAction records take, skip, snooze or undo on args.instance. The
// result is the reconciled occurrence, plus stock when inventory changed.
func doseAction(kind dose.ActionKind) actionFunc {
	return func(ctx context.Context, h *Harness, args map[string]any) (any, error) {
		a := dose.Action{
			Kind:       kind,
			InstanceID: str(args, "instance"),
			Reason:     str(args, "reason"),
			SnoozeFor:  time.Duration(num(args, "minutes") * float64(time.Minute)),
		}
		if v := str(args, "at"); v != "" {
			at, err := h.parseAt(v)
			if err != nil {
				return nil, fmt.Errorf("at: %w", err)
			}
			a.At = at
		}
		out, err := h.tracker.RecordDoseAction(ctx, a)
		if err != nil {
			return nil, err
		}
		return outcomeMap(out), nil
	}
}

func prnTake(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	var at time.Time
	if v := str(args, "at"); v != "" {
		var err error
		if at, err = h.parseAt(v); err != nil {
			return nil, fmt.Errorf("at: %w", err)
		}
	}
	out, err := h.tracker.RecordPRN(ctx, str(args, "schedule"), at)
	if err != nil {
		return nil, err
	}
	return outcomeMap(out), nil
}

func prnUndo(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	out, err := h.tracker.UndoPRN(ctx, str(args, "event"))
	if err != nil {
		return nil, err
	}
	res := map[string]any{"eventId": out.Event.ID}
	if out.Inventory != nil {
		res["stock"] = out.Inventory.After
	}
	return res, nil
}

func alertsTrigger(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	fired, err := h.tracker.TriggerAlerts(ctx, str(args, "profile"))
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(fired))
	for i, a := range fired {
		ids[i] = a.DoseInstanceID
	}
	return map[string]any{"count": float64(len(fired)), "instances": ids}, nil
}

func alertAck(ctx context.Context, h *Harness, args map[string]any) (any, error) {
	acked, err := h.tracker.AcknowledgeAlert(ctx, str(args, "profile"), str(args, "instance"), str(args, "alert"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"acknowledged": acked}, nil
}

func outcomeMap(out *dose.Outcome) map[string]any {
	res := toMap(out.Instance)
	if res == nil {
		res = map[string]any{}
	}
	if out.Inventory != nil {
		res["stock"] = out.Inventory.After
	}
	return res
}

// Argument helpers. YAML scalars arrive as string, int, float64 or bool.

func str(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(args map[string]any, key string) float64 {
	return toFloat(args[key])
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func boolean(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func strs(args map[string]any, key string) []string {
	items, _ := args[key].([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprint(it))
	}
	return out
}

// toMap renders v through its JSON encoding.
func toMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// normalize converts decoded YAML into the shapes encoding/json produces,
// so numbers compare as float64 regardless of how they were written.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
