package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType is the closed set of facts the log records.
type EventType string

const (
	EventDoseTaken                 EventType = "DOSE_TAKEN"
	EventDoseSkipped               EventType = "DOSE_SKIPPED"
	EventDosePostponed             EventType = "DOSE_POSTPONED"
	EventDoseUndone                EventType = "DOSE_UNDONE"
	EventInventoryAdjusted         EventType = "INVENTORY_ADJUSTED"
	EventGuardianAlertTriggered    EventType = "GUARDIAN_ALERT_TRIGGERED"
	EventGuardianAlertAcknowledged EventType = "GUARDIAN_ALERT_ACKNOWLEDGED"
	EventDataImported              EventType = "DATA_IMPORTED"
	EventScheduleCreated           EventType = "SCHEDULE_CREATED"
	EventScheduleUpdated           EventType = "SCHEDULE_UPDATED"
	EventProfileDeleted            EventType = "PROFILE_DELETED"
)

// ValidEventTypes defines the allowed event types.
var ValidEventTypes = map[EventType]bool{
	EventDoseTaken:                 true,
	EventDoseSkipped:               true,
	EventDosePostponed:             true,
	EventDoseUndone:                true,
	EventInventoryAdjusted:         true,
	EventGuardianAlertTriggered:    true,
	EventGuardianAlertAcknowledged: true,
	EventDataImported:              true,
	EventScheduleCreated:           true,
	EventScheduleUpdated:           true,
	EventProfileDeleted:            true,
}

// Metadata keys shared by writers and readers of the log.
const (
	MetaScheduleID     = "scheduleId"
	MetaPlannedAt      = "plannedAt"   // RFC 3339, UTC
	MetaSnoozeUntil    = "snoozeUntil" // RFC 3339, UTC
	MetaTargetEventID  = "targetEventId"
	MetaDoseInstanceID = "doseInstanceId"
	MetaInventoryID    = "inventoryId"
	MetaAmount         = "amount"
	MetaDecremented    = "decremented"
	MetaPRN            = "prn"
	MetaAlertID        = "alertId"
	MetaReason         = "reason"
	MetaStrategy       = "strategy"
	MetaPriorCounts    = "priorCounts"
	MetaNewCounts      = "newCounts"
)

// Event is an append-only fact. Events are never mutated; DOSE_UNDONE
// counter-events neutralize earlier dose events.
type Event struct {
	ID        string         `json:"id"`
	TS        time.Time      `json:"ts"`
	Type      EventType      `json:"type"`
	ProfileID string         `json:"profileId"`
	EntityID  string         `json:"entityId"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MetaString returns a string metadata value or "".
func (e *Event) MetaString(key string) string {
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaTime returns a timestamp metadata value.
func (e *Event) MetaTime(key string) (time.Time, bool) {
	s := e.MetaString(key)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MetaFloat returns a numeric metadata value. Values decoded from JSON
// arrive as float64 or json.Number depending on the decoder.
func (e *Event) MetaFloat(key string) (float64, bool) {
	switch v := e.Metadata[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// MetaBool returns a boolean metadata value or false.
func (e *Event) MetaBool(key string) bool {
	v, _ := e.Metadata[key].(bool)
	return v
}

// FormatInstant renders t the way instants are stored in metadata.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
