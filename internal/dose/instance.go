package dose

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/medtrack/internal/model"
)

// Status is the derived state of one occurrence.
type Status string

const (
	StatusPending Status = "pending"
	StatusTaken   Status = "taken"
	StatusSkipped Status = "skipped"
	StatusSnoozed Status = "snoozed"
)

// Instance is one concrete occurrence of a schedule.
type Instance struct {
	// ID is scheduleId_YYYY-MM-DD_HH:mm and is stable across recomputation.
	ID             string          `json:"id"`
	ProfileID      string          `json:"profileId"`
	ScheduleID     string          `json:"scheduleId"`
	MedicationID   string          `json:"medicationId"`
	MedicationName string          `json:"medicationName"`
	PlannedDate    model.Date      `json:"plannedDate"`
	PlannedTime    model.TimeOfDay `json:"-"`
	PlannedAt      time.Time       `json:"plannedAt"`
	EffectiveAt    time.Time       `json:"effectiveAt"`
	Status         Status          `json:"status"`
	IsLate         bool            `json:"isLate,omitempty"`
	ActedAt        *time.Time      `json:"actedAt,omitempty"`
	SnoozedUntil   *time.Time      `json:"snoozedUntil,omitempty"`
	DoseAmount     float64         `json:"doseAmount"`
	DoseUnit       string          `json:"doseUnit,omitempty"`

	// EventID is the event that decided Status (taken/skipped/snoozed).
	EventID string `json:"eventId,omitempty"`
	// SnoozeEventID is the governing postponement, expired or not.
	SnoozeEventID string `json:"snoozeEventId,omitempty"`
}

// InstanceID builds the identity of an occurrence.
func InstanceID(scheduleID string, date model.Date, t model.TimeOfDay) string {
	return fmt.Sprintf("%s_%s_%s", scheduleID, date, t)
}

// ParseInstanceID splits an instance id into its parts. Schedule ids may
// themselves contain underscores; the date and time are taken from the end.
func ParseInstanceID(id string) (scheduleID string, date model.Date, t model.TimeOfDay, err error) {
	i := strings.LastIndex(id, "_")
	if i <= 0 {
		return "", model.Date{}, model.TimeOfDay{}, fmt.Errorf("instance id %q: malformed", id)
	}
	t, err = model.ParseTimeOfDay(id[i+1:])
	if err != nil {
		return "", model.Date{}, model.TimeOfDay{}, fmt.Errorf("instance id %q: %w", id, err)
	}
	rest := id[:i]
	j := strings.LastIndex(rest, "_")
	if j <= 0 {
		return "", model.Date{}, model.TimeOfDay{}, fmt.Errorf("instance id %q: malformed", id)
	}
	date, err = model.ParseDate(rest[j+1:])
	if err != nil {
		return "", model.Date{}, model.TimeOfDay{}, fmt.Errorf("instance id %q: %w", id, err)
	}
	return rest[:j], date, t, nil
}

// Actionable reports whether the occurrence can still be taken or skipped.
func (i *Instance) Actionable() bool {
	return i.Status == StatusPending || i.Status == StatusSnoozed
}
