package model

import "time"

// AppState is the single persisted root document.
//
// Invariant: ActiveProfileID references an existing profile, and is empty
// only when Profiles is empty.
type AppState struct {
	SchemaVersion    int                `json:"schemaVersion"`
	Profiles         []Profile          `json:"profiles"`
	ActiveProfileID  string             `json:"activeProfileId"`
	Medications      []Medication       `json:"medications"`
	Schedules        []Schedule         `json:"schedules"`
	Inventory        []InventoryItem    `json:"inventory"`
	Events           []Event            `json:"events"`
	Settings         Settings           `json:"settings"`
	ShoppingList     []ShoppingItem     `json:"shoppingList"`
	GuardianContacts []GuardianContact  `json:"guardianContacts"`
	Symptoms         []SymptomEntry     `json:"symptoms"`
	Measurements     []MeasurementEntry `json:"measurements"`
}

// Default guardian windows for new profiles, in minutes.
const (
	DefaultGraceWindowMinutes    = 60
	DefaultFollowUpWindowMinutes = 30
)

// Profile is the person schedules, inventory and events are partitioned by.
type Profile struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	CreatedAt             time.Time `json:"createdAt"`
	GuardianModeEnabled   bool      `json:"guardianModeEnabled"`
	GraceWindowMinutes    int       `json:"graceWindowMinutes"`
	FollowUpWindowMinutes int       `json:"followUpWindowMinutes"`
}

// Medication is a catalog entry referenced by schedules.
type Medication struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId"`
	Name      string `json:"name"`
	Form      string `json:"form,omitempty"`
	Strength  string `json:"strength,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// InventoryItem tracks remaining stock of one medication for one profile.
type InventoryItem struct {
	ID                string    `json:"id"`
	ProfileID         string    `json:"profileId"`
	MedicationID      string    `json:"medicationId"`
	Quantity          float64   `json:"quantity"`
	Unit              string    `json:"unit"`
	LowStockThreshold float64   `json:"lowStockThreshold"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Settings are device-wide preferences.
type Settings struct {
	AutoDecrementInventory    bool   `json:"autoDecrementInventory"`
	AddLowStockToShoppingList bool   `json:"addLowStockToShoppingList"`
	Timezone                  string `json:"timezone,omitempty"`
}

// ShoppingItem is a profile-scoped restock reminder.
type ShoppingItem struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profileId"`
	MedicationID string    `json:"medicationId,omitempty"`
	Name         string    `json:"name"`
	AddedAt      time.Time `json:"addedAt"`
	Done         bool      `json:"done,omitempty"`
}

// GuardianContact receives missed-dose notifications for a profile.
type GuardianContact struct {
	ID        string `json:"id"`
	ProfileID string `json:"profileId"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// SymptomEntry is a free-form symptom journal record.
type SymptomEntry struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	TS        time.Time `json:"ts"`
	Name      string    `json:"name"`
	Severity  int       `json:"severity,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// MeasurementEntry is a vital-sign style reading (blood pressure, glucose, ...).
type MeasurementEntry struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	TS        time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}

// Location resolves the configured time zone, falling back to time.Local.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
