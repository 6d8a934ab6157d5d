// Package guardian detects doses that stayed unactioned past a profile's
// grace and follow-up windows and notifies the profile's guardian contacts.
//
// Alerts are derived and never stored. Acknowledging an alert appends a
// GUARDIAN_ALERT_ACKNOWLEDGED event for the occurrence, which suppresses it
// on every later detection.
package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/model"
)

// Alert is a missed dose awaiting acknowledgement.
type Alert struct {
	// ID is missed-{doseInstanceId}-{detection unix millis}.
	ID             string    `json:"id"`
	DoseInstanceID string    `json:"doseInstanceId"`
	ProfileID      string    `json:"profileId"`
	ScheduleID     string    `json:"scheduleId"`
	MedicationName string    `json:"medicationName"`
	PlannedAt      time.Time `json:"plannedAt"`
	Threshold      time.Time `json:"threshold"`
	DetectedAt     time.Time `json:"detectedAt"`
}

// AlertID builds the identity of an alert detected at detectedAt.
func AlertID(doseInstanceID string, detectedAt time.Time) string {
	return fmt.Sprintf("missed-%s-%d", doseInstanceID, detectedAt.UnixMilli())
}

// Notifier delivers an alert to a profile's contacts. Delivery is best
// effort; errors are logged by the detector and never retried.
type Notifier interface {
	Notify(ctx context.Context, alert Alert, contacts []model.GuardianContact) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, alert Alert, contacts []model.GuardianContact) error

func (f NotifierFunc) Notify(ctx context.Context, alert Alert, contacts []model.GuardianContact) error {
	return f(ctx, alert, contacts)
}

// LogNotifier writes alerts to a logger. It is the notifier of the CLI,
// which has no other delivery channel.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, alert Alert, contacts []model.GuardianContact) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, len(contacts))
	for i, c := range contacts {
		names[i] = c.Name
	}
	logger.Warn("missed dose",
		"alert_id", alert.ID, "medication", alert.MedicationName,
		"planned_at", model.FormatInstant(alert.PlannedAt), "contacts", names)
	return nil
}

// Detector computes and acts on missed-dose alerts.
type Detector struct {
	rec      *dose.Reconciler
	ids      model.IDGenerator
	notifier Notifier
	logger   *slog.Logger
}

// NewDetector creates a Detector. A nil notifier logs alerts.
func NewDetector(rec *dose.Reconciler, ids model.IDGenerator, notifier Notifier, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Detector{rec: rec, ids: ids, notifier: notifier, logger: logger}
}

// PendingAlerts returns an alert for each of today's occurrences that is
// still pending after planned time + grace + follow-up, excluding
// acknowledged ones. It returns nothing unless guardian mode is enabled
// for the profile.
func (d *Detector) PendingAlerts(st *model.AppState, profileID string, now time.Time) []Alert {
	p, ok := st.Profile(profileID)
	if !ok || !p.GuardianModeEnabled {
		return nil
	}
	window := time.Duration(p.GraceWindowMinutes+p.FollowUpWindowMinutes) * time.Minute
	acked := eventsByInstance(st, model.EventGuardianAlertAcknowledged)
	today := model.DateOf(now.In(st.Settings.Location()))
	now = now.UTC()

	var out []Alert
	for _, inst := range d.rec.InstancesForDate(st, profileID, today, now) {
		if inst.Status != dose.StatusPending || acked[inst.ID] {
			continue
		}
		threshold := inst.PlannedAt.Add(window)
		if !now.After(threshold) {
			continue
		}
		out = append(out, Alert{
			ID:             AlertID(inst.ID, now),
			DoseInstanceID: inst.ID,
			ProfileID:      profileID,
			ScheduleID:     inst.ScheduleID,
			MedicationName: inst.MedicationName,
			PlannedAt:      inst.PlannedAt,
			Threshold:      threshold,
			DetectedAt:     now,
		})
	}
	return out
}

// Acknowledge permanently suppresses alerts for an occurrence. It reports
// false without appending when the occurrence is already acknowledged.
func (d *Detector) Acknowledge(st *model.AppState, profileID, doseInstanceID, alertID string, at time.Time) (model.Event, bool) {
	if eventsByInstance(st, model.EventGuardianAlertAcknowledged)[doseInstanceID] {
		return model.Event{}, false
	}
	e := model.Event{
		ID:        d.ids.NewID(),
		TS:        at,
		Type:      model.EventGuardianAlertAcknowledged,
		ProfileID: profileID,
		EntityID:  doseInstanceID,
		Metadata: map[string]any{
			model.MetaDoseInstanceID: doseInstanceID,
		},
	}
	if alertID != "" {
		e.Metadata[model.MetaAlertID] = alertID
	}
	st.Append(e)
	d.logger.Info("guardian alert acknowledged", "dose_instance_id", doseInstanceID)
	return e, true
}

// Trigger notifies contacts of every pending alert not triggered before and
// logs GUARDIAN_ALERT_TRIGGERED for each. Notification failures are logged
// and do not stop the run.
func (d *Detector) Trigger(ctx context.Context, st *model.AppState, profileID string, now time.Time) []Alert {
	triggered := eventsByInstance(st, model.EventGuardianAlertTriggered)
	contacts := contactsOf(st, profileID)

	var fired []Alert
	for _, a := range d.PendingAlerts(st, profileID, now) {
		if triggered[a.DoseInstanceID] {
			continue
		}
		if err := d.notifier.Notify(ctx, a, contacts); err != nil {
			d.logger.Warn("guardian notification failed", "alert_id", a.ID, "error", err)
		}
		st.Append(model.Event{
			ID:        d.ids.NewID(),
			TS:        now,
			Type:      model.EventGuardianAlertTriggered,
			ProfileID: profileID,
			EntityID:  a.DoseInstanceID,
			Metadata: map[string]any{
				model.MetaDoseInstanceID: a.DoseInstanceID,
				model.MetaAlertID:        a.ID,
			},
		})
		fired = append(fired, a)
	}
	return fired
}

func eventsByInstance(st *model.AppState, typ model.EventType) map[string]bool {
	out := make(map[string]bool)
	for i := range st.Events {
		if st.Events[i].Type == typ {
			if id := st.Events[i].MetaString(model.MetaDoseInstanceID); id != "" {
				out[id] = true
			}
		}
	}
	return out
}

func contactsOf(st *model.AppState, profileID string) []model.GuardianContact {
	var out []model.GuardianContact
	for _, c := range st.GuardianContacts {
		if c.ProfileID == profileID {
			out = append(out, c)
		}
	}
	return out
}
