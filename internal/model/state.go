package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultProfileID is the id given to the profile created for a fresh
// document and to the profile older single-user documents are assigned to.
const DefaultProfileID = "profile-default"

// NewDefaultState returns a freshly-initialized document with one profile.
func NewDefaultState(now time.Time) *AppState {
	return &AppState{
		SchemaVersion: CurrentSchemaVersion,
		Profiles: []Profile{{
			ID:                    DefaultProfileID,
			Name:                  "Me",
			CreatedAt:             now.UTC(),
			GraceWindowMinutes:    DefaultGraceWindowMinutes,
			FollowUpWindowMinutes: DefaultFollowUpWindowMinutes,
		}},
		ActiveProfileID:  DefaultProfileID,
		Medications:      []Medication{},
		Schedules:        []Schedule{},
		Inventory:        []InventoryItem{},
		Events:           []Event{},
		Settings:         DefaultSettings(),
		ShoppingList:     []ShoppingItem{},
		GuardianContacts: []GuardianContact{},
		Symptoms:         []SymptomEntry{},
		Measurements:     []MeasurementEntry{},
	}
}

// DefaultSettings returns the settings of a fresh document.
func DefaultSettings() Settings {
	return Settings{
		AutoDecrementInventory:    true,
		AddLowStockToShoppingList: true,
	}
}

// NormalizeName trims and NFC-normalizes user-entered names so visually
// identical names compare and sort identically.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Profile returns the profile with the given id.
func (s *AppState) Profile(id string) (*Profile, bool) {
	for i := range s.Profiles {
		if s.Profiles[i].ID == id {
			return &s.Profiles[i], true
		}
	}
	return nil, false
}

// Medication returns the medication with the given id.
func (s *AppState) Medication(id string) (*Medication, bool) {
	for i := range s.Medications {
		if s.Medications[i].ID == id {
			return &s.Medications[i], true
		}
	}
	return nil, false
}

// Schedule returns the schedule with the given id.
func (s *AppState) Schedule(id string) (*Schedule, bool) {
	for i := range s.Schedules {
		if s.Schedules[i].ID == id {
			return &s.Schedules[i], true
		}
	}
	return nil, false
}

// SchedulesFor returns the schedules owned by a profile, in document order.
func (s *AppState) SchedulesFor(profileID string) []*Schedule {
	var out []*Schedule
	for i := range s.Schedules {
		if s.Schedules[i].ProfileID == profileID {
			out = append(out, &s.Schedules[i])
		}
	}
	return out
}

// InventoryFor returns the inventory record of a medication for a profile.
func (s *AppState) InventoryFor(profileID, medicationID string) (*InventoryItem, bool) {
	for i := range s.Inventory {
		it := &s.Inventory[i]
		if it.ProfileID == profileID && it.MedicationID == medicationID {
			return it, true
		}
	}
	return nil, false
}

// Event returns the event with the given id.
func (s *AppState) Event(id string) (*Event, bool) {
	for i := range s.Events {
		if s.Events[i].ID == id {
			return &s.Events[i], true
		}
	}
	return nil, false
}

// Append adds an event to the log.
func (s *AppState) Append(e Event) {
	e.TS = e.TS.UTC()
	s.Events = append(s.Events, e)
}

// Counts summarises collection sizes, used by import previews and the
// DATA_IMPORTED audit event.
type Counts struct {
	Profiles         int `json:"profiles"`
	Medications      int `json:"medications"`
	Schedules        int `json:"schedules"`
	Inventory        int `json:"inventory"`
	Events           int `json:"events"`
	ShoppingList     int `json:"shoppingList"`
	GuardianContacts int `json:"guardianContacts"`
	Symptoms         int `json:"symptoms"`
	Measurements     int `json:"measurements"`
}

// Counts returns the collection sizes of s.
func (s *AppState) Counts() Counts {
	return Counts{
		Profiles:         len(s.Profiles),
		Medications:      len(s.Medications),
		Schedules:        len(s.Schedules),
		Inventory:        len(s.Inventory),
		Events:           len(s.Events),
		ShoppingList:     len(s.ShoppingList),
		GuardianContacts: len(s.GuardianContacts),
		Symptoms:         len(s.Symptoms),
		Measurements:     len(s.Measurements),
	}
}

// AsMap renders counts for event metadata.
func (c Counts) AsMap() map[string]any {
	return map[string]any{
		"profiles":         float64(c.Profiles),
		"medications":      float64(c.Medications),
		"schedules":        float64(c.Schedules),
		"inventory":        float64(c.Inventory),
		"events":           float64(c.Events),
		"shoppingList":     float64(c.ShoppingList),
		"guardianContacts": float64(c.GuardianContacts),
		"symptoms":         float64(c.Symptoms),
		"measurements":     float64(c.Measurements),
	}
}

// EnsureCollections replaces nil collections with empty ones so the
// serialized document always carries every array.
func (s *AppState) EnsureCollections() {
	if s.Profiles == nil {
		s.Profiles = []Profile{}
	}
	if s.Medications == nil {
		s.Medications = []Medication{}
	}
	if s.Schedules == nil {
		s.Schedules = []Schedule{}
	}
	if s.Inventory == nil {
		s.Inventory = []InventoryItem{}
	}
	if s.Events == nil {
		s.Events = []Event{}
	}
	if s.ShoppingList == nil {
		s.ShoppingList = []ShoppingItem{}
	}
	if s.GuardianContacts == nil {
		s.GuardianContacts = []GuardianContact{}
	}
	if s.Symptoms == nil {
		s.Symptoms = []SymptomEntry{}
	}
	if s.Measurements == nil {
		s.Measurements = []MeasurementEntry{}
	}
}
