package tracker

import (
	"context"
	"time"

	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/guardian"
	"github.com/roach88/medtrack/internal/inventory"
	"github.com/roach88/medtrack/internal/model"
)

// DosesForDate returns the reconciled occurrences of a profile's day.
// An empty profileID means the active profile.
func (t *Tracker) DosesForDate(profileID string, date model.Date) ([]dose.Instance, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := resolveProfile(t.state, profileID)
	if err != nil {
		return nil, err
	}
	return t.recorder.Reconciler().InstancesForDate(t.state, id, date, t.clock.Now()), nil
}

// Adherence summarises a profile's occurrences due between from and to.
func (t *Tracker) Adherence(profileID string, from, to model.Date) (dose.Adherence, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := resolveProfile(t.state, profileID)
	if err != nil {
		return dose.Adherence{}, err
	}
	return t.recorder.Reconciler().Adherence(t.state, id, from, to, t.clock.Now()), nil
}

// InventoryStatus reports stock levels of a profile's medications.
func (t *Tracker) InventoryStatus(profileID string) ([]inventory.Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := resolveProfile(t.state, profileID)
	if err != nil {
		return nil, err
	}
	today := model.DateOf(t.clock.Now().In(t.state.Settings.Location()))
	return inventory.StatusFor(t.state, id, today), nil
}

// PendingAlerts returns the profile's unacknowledged missed-dose alerts.
func (t *Tracker) PendingAlerts(profileID string) ([]guardian.Alert, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := resolveProfile(t.state, profileID)
	if err != nil {
		return nil, err
	}
	return t.guardian.PendingAlerts(t.state, id, t.clock.Now()), nil
}

// PRNLog returns the as-needed doses logged against a schedule.
func (t *Tracker) PRNLog(scheduleID string) []dose.PRNDose {
	t.mu.Lock()
	defer t.mu.Unlock()
	return dose.PRNLog(t.state, scheduleID)
}

// RecordDoseAction records take, skip, snooze or undo on an occurrence.
func (t *Tracker) RecordDoseAction(ctx context.Context, a dose.Action) (*dose.Outcome, error) {
	var out *dose.Outcome
	err := t.mutate(ctx, func(st *model.AppState) error {
		var err error
		out, err = t.recorder.Record(st, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordPRN logs an as-needed dose. A zero at means now.
func (t *Tracker) RecordPRN(ctx context.Context, scheduleID string, at time.Time) (*dose.Outcome, error) {
	var out *dose.Outcome
	err := t.mutate(ctx, func(st *model.AppState) error {
		var err error
		out, err = t.recorder.RecordPRN(st, scheduleID, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UndoPRN neutralizes a logged as-needed dose.
func (t *Tracker) UndoPRN(ctx context.Context, eventID string) (*dose.Outcome, error) {
	var out *dose.Outcome
	err := t.mutate(ctx, func(st *model.AppState) error {
		var err error
		out, err = t.recorder.UndoPRN(st, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AcknowledgeAlert suppresses alerts for an occurrence. It reports false
// when the occurrence was already acknowledged; nothing is written then.
func (t *Tracker) AcknowledgeAlert(ctx context.Context, profileID, doseInstanceID, alertID string) (bool, error) {
	var acked bool
	err := t.mutate(ctx, func(st *model.AppState) error {
		id, err := resolveProfile(st, profileID)
		if err != nil {
			return err
		}
		_, acked = t.guardian.Acknowledge(st, id, doseInstanceID, alertID, t.clock.Now())
		return nil
	})
	return acked, err
}

// TriggerAlerts notifies contacts of newly missed doses and logs each
// trigger. The caller owns the polling cadence.
func (t *Tracker) TriggerAlerts(ctx context.Context, profileID string) ([]guardian.Alert, error) {
	var fired []guardian.Alert
	err := t.mutate(ctx, func(st *model.AppState) error {
		id, err := resolveProfile(st, profileID)
		if err != nil {
			return err
		}
		fired = t.guardian.Trigger(ctx, st, id, t.clock.Now())
		return nil
	})
	return fired, err
}

// AdjustInventory sets a medication's stock. An empty ProfileID means the
// active profile.
func (t *Tracker) AdjustInventory(ctx context.Context, adj inventory.Adjustment) (*inventory.Change, error) {
	var ch *inventory.Change
	err := t.mutate(ctx, func(st *model.AppState) error {
		id, err := resolveProfile(st, adj.ProfileID)
		if err != nil {
			return err
		}
		adj.ProfileID = id
		ch, err = t.inventory.Adjust(st, adj, t.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}
