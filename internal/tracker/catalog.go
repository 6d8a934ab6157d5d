package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/medtrack/internal/model"
)

// ProfileInput describes a new profile or a change to one.
type ProfileInput struct {
	Name                  string
	GuardianModeEnabled   bool
	GraceWindowMinutes    int
	FollowUpWindowMinutes int
}

// AddProfile creates a profile. Zero windows take the defaults. The first
// profile of a document becomes active.
func (t *Tracker) AddProfile(ctx context.Context, in ProfileInput) (model.Profile, error) {
	name := model.NormalizeName(in.Name)
	if name == "" {
		return model.Profile{}, fmt.Errorf("add profile: name is required")
	}
	p := model.Profile{
		ID:                    t.ids.NewID(),
		Name:                  name,
		CreatedAt:             t.clock.Now().UTC(),
		GuardianModeEnabled:   in.GuardianModeEnabled,
		GraceWindowMinutes:    in.GraceWindowMinutes,
		FollowUpWindowMinutes: in.FollowUpWindowMinutes,
	}
	if p.GraceWindowMinutes <= 0 {
		p.GraceWindowMinutes = model.DefaultGraceWindowMinutes
	}
	if p.FollowUpWindowMinutes <= 0 {
		p.FollowUpWindowMinutes = model.DefaultFollowUpWindowMinutes
	}
	err := t.mutate(ctx, func(st *model.AppState) error {
		st.Profiles = append(st.Profiles, p)
		if st.ActiveProfileID == "" {
			st.ActiveProfileID = p.ID
		}
		return nil
	})
	return p, err
}

// UpdateGuardian changes a profile's guardian settings. Non-positive
// windows leave the current value.
func (t *Tracker) UpdateGuardian(ctx context.Context, profileID string, in ProfileInput) (model.Profile, error) {
	var out model.Profile
	err := t.mutate(ctx, func(st *model.AppState) error {
		id, err := resolveProfile(st, profileID)
		if err != nil {
			return err
		}
		p, _ := st.Profile(id)
		p.GuardianModeEnabled = in.GuardianModeEnabled
		if in.GraceWindowMinutes > 0 {
			p.GraceWindowMinutes = in.GraceWindowMinutes
		}
		if in.FollowUpWindowMinutes > 0 {
			p.FollowUpWindowMinutes = in.FollowUpWindowMinutes
		}
		out = *p
		return nil
	})
	return out, err
}

// SetActiveProfile selects the profile reads default to.
func (t *Tracker) SetActiveProfile(ctx context.Context, profileID string) error {
	return t.mutate(ctx, func(st *model.AppState) error {
		if _, ok := st.Profile(profileID); !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrUnknownProfile)
		}
		st.ActiveProfileID = profileID
		return nil
	})
}

// DeleteProfile removes a profile with its medications, schedules,
// inventory, events and profile-scoped entries, and logs PROFILE_DELETED.
// When the active profile is deleted the first remaining one becomes
// active, or none when it was the last.
func (t *Tracker) DeleteProfile(ctx context.Context, profileID string) error {
	return t.mutate(ctx, func(st *model.AppState) error {
		if _, ok := st.Profile(profileID); !ok {
			return fmt.Errorf("profile %q: %w", profileID, ErrUnknownProfile)
		}
		st.Profiles = without(st.Profiles, func(p *model.Profile) bool { return p.ID == profileID })
		st.Medications = without(st.Medications, func(m *model.Medication) bool { return m.ProfileID == profileID })
		st.Schedules = without(st.Schedules, func(s *model.Schedule) bool { return s.ProfileID == profileID })
		st.Inventory = without(st.Inventory, func(i *model.InventoryItem) bool { return i.ProfileID == profileID })
		st.Events = without(st.Events, func(e *model.Event) bool { return e.ProfileID == profileID })
		st.ShoppingList = without(st.ShoppingList, func(s *model.ShoppingItem) bool { return s.ProfileID == profileID })
		st.GuardianContacts = without(st.GuardianContacts, func(g *model.GuardianContact) bool { return g.ProfileID == profileID })
		st.Symptoms = without(st.Symptoms, func(s *model.SymptomEntry) bool { return s.ProfileID == profileID })
		st.Measurements = without(st.Measurements, func(m *model.MeasurementEntry) bool { return m.ProfileID == profileID })

		if st.ActiveProfileID == profileID {
			st.ActiveProfileID = ""
			if len(st.Profiles) > 0 {
				st.ActiveProfileID = st.Profiles[0].ID
			}
		}
		st.Append(model.Event{
			ID:        t.ids.NewID(),
			TS:        t.clock.Now(),
			Type:      model.EventProfileDeleted,
			ProfileID: st.ActiveProfileID,
			EntityID:  profileID,
		})
		t.logger.Info("profile deleted", "profile_id", profileID)
		return nil
	})
}

// AddMedication adds a catalog entry. An empty ProfileID means the active
// profile; the name is NFC-normalized.
func (t *Tracker) AddMedication(ctx context.Context, m model.Medication) (model.Medication, error) {
	m.Name = model.NormalizeName(m.Name)
	if m.Name == "" {
		return model.Medication{}, fmt.Errorf("add medication: name is required")
	}
	err := t.mutate(ctx, func(st *model.AppState) error {
		id, err := resolveProfile(st, m.ProfileID)
		if err != nil {
			return err
		}
		m.ProfileID = id
		if m.ID == "" {
			m.ID = t.ids.NewID()
		}
		if _, exists := st.Medication(m.ID); exists {
			return fmt.Errorf("add medication: id %q already exists", m.ID)
		}
		st.Medications = append(st.Medications, m)
		return nil
	})
	return m, err
}

// RemoveMedication deletes a catalog entry no schedule references.
func (t *Tracker) RemoveMedication(ctx context.Context, medicationID string) error {
	return t.mutate(ctx, func(st *model.AppState) error {
		if _, ok := st.Medication(medicationID); !ok {
			return fmt.Errorf("medication %q: %w", medicationID, ErrUnknownMedication)
		}
		for _, s := range st.Schedules {
			if s.MedicationID == medicationID {
				return fmt.Errorf("medication %q: schedule %s: %w", medicationID, s.ID, ErrMedicationInUse)
			}
		}
		st.Medications = without(st.Medications, func(m *model.Medication) bool { return m.ID == medicationID })
		return nil
	})
}

// CreateSchedule validates and adds a schedule and logs SCHEDULE_CREATED.
// The schedule's profile is taken from its medication.
func (t *Tracker) CreateSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error) {
	if err := model.ValidateSchedule(&s); err != nil {
		return model.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	err := t.mutate(ctx, func(st *model.AppState) error {
		med, ok := st.Medication(s.MedicationID)
		if !ok {
			return fmt.Errorf("create schedule: medication %q: %w", s.MedicationID, ErrUnknownMedication)
		}
		now := t.clock.Now().UTC()
		s.ProfileID = med.ProfileID
		if s.ID == "" {
			s.ID = t.ids.NewID()
		}
		if _, exists := st.Schedule(s.ID); exists {
			return fmt.Errorf("create schedule: id %q already exists", s.ID)
		}
		s.CreatedAt, s.UpdatedAt = now, now
		st.Schedules = append(st.Schedules, s)
		st.Append(t.scheduleEvent(model.EventScheduleCreated, &s, now))
		return nil
	})
	return s, err
}

// UpdateSchedule replaces a schedule's rule and dose fields and logs
// SCHEDULE_UPDATED. Identity, ownership and creation time are kept. Past
// occurrences are re-derived from the new rule.
func (t *Tracker) UpdateSchedule(ctx context.Context, s model.Schedule) (model.Schedule, error) {
	if err := model.ValidateSchedule(&s); err != nil {
		return model.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	var out model.Schedule
	err := t.mutate(ctx, func(st *model.AppState) error {
		cur, ok := st.Schedule(s.ID)
		if !ok {
			return fmt.Errorf("update schedule %q: not found", s.ID)
		}
		if _, ok := st.Medication(s.MedicationID); !ok {
			return fmt.Errorf("update schedule: medication %q: %w", s.MedicationID, ErrUnknownMedication)
		}
		now := t.clock.Now().UTC()
		s.ProfileID = cur.ProfileID
		s.CreatedAt = cur.CreatedAt
		s.UpdatedAt = now
		*cur = s
		out = s
		st.Append(t.scheduleEvent(model.EventScheduleUpdated, &s, now))
		return nil
	})
	return out, err
}

// SetSchedulePaused pauses or resumes a schedule.
func (t *Tracker) SetSchedulePaused(ctx context.Context, scheduleID string, paused bool) error {
	return t.mutate(ctx, func(st *model.AppState) error {
		s, ok := st.Schedule(scheduleID)
		if !ok {
			return fmt.Errorf("schedule %q: not found", scheduleID)
		}
		if s.IsPaused == paused {
			return nil
		}
		now := t.clock.Now().UTC()
		s.IsPaused = paused
		s.UpdatedAt = now
		st.Append(t.scheduleEvent(model.EventScheduleUpdated, s, now))
		return nil
	})
}

func (t *Tracker) scheduleEvent(typ model.EventType, s *model.Schedule, now time.Time) model.Event {
	return model.Event{
		ID:        t.ids.NewID(),
		TS:        now,
		Type:      typ,
		ProfileID: s.ProfileID,
		EntityID:  s.ID,
		Metadata: map[string]any{
			model.MetaScheduleID: s.ID,
		},
	}
}

// without returns items minus those matching drop, preserving order.
func without[T any](items []T, drop func(*T) bool) []T {
	out := items[:0:0]
	for i := range items {
		if !drop(&items[i]) {
			out = append(out, items[i])
		}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// SetTimezone changes the IANA zone used for civil dates and planned
// times. A zone equal to the current one writes nothing.
func (t *Tracker) SetTimezone(ctx context.Context, tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("set timezone %q: %w", tz, err)
	}
	t.mu.Lock()
	same := t.state.Settings.Timezone == tz
	t.mu.Unlock()
	if same {
		return nil
	}
	return t.mutate(ctx, func(st *model.AppState) error {
		st.Settings.Timezone = tz
		return nil
	})
}

// AddGuardianContact registers someone to notify about a profile's missed
// doses. An empty ProfileID means the active profile.
func (t *Tracker) AddGuardianContact(ctx context.Context, c model.GuardianContact) (model.GuardianContact, error) {
	c.Name = model.NormalizeName(c.Name)
	if c.Name == "" {
		return model.GuardianContact{}, fmt.Errorf("add guardian contact: name is required")
	}
	err := t.mutate(ctx, func(st *model.AppState) error {
		id, err := resolveProfile(st, c.ProfileID)
		if err != nil {
			return err
		}
		c.ProfileID = id
		if c.ID == "" {
			c.ID = t.ids.NewID()
		}
		st.GuardianContacts = append(st.GuardianContacts, c)
		return nil
	})
	return c, err
}
