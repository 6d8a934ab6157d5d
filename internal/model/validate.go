package model

import (
	"fmt"
	"strings"
)

// ValidationError describes one broken invariant.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every broken invariant of a document.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateScheme checks variant-specific invariants: times are HH:mm,
// weekdays are within 0..6 and intervals are at least 1.
func ValidateScheme(sc Scheme) error {
	var errs ValidationErrors
	checkTimes := func(times []string) {
		for i, t := range times {
			if _, err := ParseTimeOfDay(t); err != nil {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("times[%d]", i), Message: err.Error()})
			}
		}
	}

	switch v := sc.(type) {
	case Daily:
		checkTimes(v.Times)
		if len(v.Times) == 0 {
			errs = append(errs, ValidationError{Field: "times", Message: "at least one time is required"})
		}
	case Weekly:
		checkTimes(v.Times)
		if len(v.Weekdays) == 0 {
			errs = append(errs, ValidationError{Field: "weekdays", Message: "at least one weekday is required"})
		}
		for i, wd := range v.Weekdays {
			if wd < 0 || wd > 6 {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("weekdays[%d]", i), Message: fmt.Sprintf("weekday %d outside 0..6", wd)})
			}
		}
	case IntervalDays:
		checkTimes(v.Times)
		if v.Interval < 1 {
			errs = append(errs, ValidationError{Field: "interval", Message: "interval must be >= 1"})
		}
	case IntervalHours:
		if v.Interval < 1 {
			errs = append(errs, ValidationError{Field: "interval", Message: "interval must be >= 1"})
		}
	case CourseDays:
		checkTimes(v.Times)
		if v.Days < 1 {
			errs = append(errs, ValidationError{Field: "days", Message: "days must be >= 1"})
		}
	case PRN:
		if v.MinIntervalHours != nil && *v.MinIntervalHours < 0 {
			errs = append(errs, ValidationError{Field: "minIntervalHours", Message: "must not be negative"})
		}
		if v.MaxPerDay != nil && *v.MaxPerDay < 1 {
			errs = append(errs, ValidationError{Field: "maxPerDay", Message: "must be >= 1"})
		}
	case nil:
		errs = append(errs, ValidationError{Field: "scheme", Message: "scheme is required"})
	default:
		errs = append(errs, ValidationError{Field: "scheme", Message: fmt.Sprintf("unsupported scheme %T", sc)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateSchedule checks a schedule before it is created or updated.
func ValidateSchedule(s *Schedule) error {
	var errs ValidationErrors
	if s.MedicationID == "" {
		errs = append(errs, ValidationError{Field: "medicationId", Message: "medication is required"})
	}
	if s.StartDate.IsZero() {
		errs = append(errs, ValidationError{Field: "startDate", Message: "start date is required"})
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		errs = append(errs, ValidationError{Field: "endDate", Message: "end date precedes start date"})
	}
	if s.DoseAmount < 0 {
		errs = append(errs, ValidationError{Field: "doseAmount", Message: "dose amount must not be negative"})
	}
	if err := ValidateScheme(s.Scheme); err != nil {
		if ve, ok := err.(ValidationErrors); ok {
			for _, e := range ve {
				e.Field = "scheme." + e.Field
				errs = append(errs, e)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks the document-level invariants: identity uniqueness,
// the active-profile reference and profile ownership of scoped entities.
// Schedule time strings are not checked here; malformed entries in stored
// documents are skipped at computation time instead.
func Validate(s *AppState) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if s.SchemaVersion < 1 || s.SchemaVersion > CurrentSchemaVersion {
		add("schemaVersion", "unsupported schema version %d", s.SchemaVersion)
	}

	profiles := make(map[string]bool, len(s.Profiles))
	for i, p := range s.Profiles {
		if p.ID == "" {
			add(fmt.Sprintf("profiles[%d].id", i), "id is required")
			continue
		}
		if profiles[p.ID] {
			add(fmt.Sprintf("profiles[%d].id", i), "duplicate id %q", p.ID)
		}
		profiles[p.ID] = true
	}

	switch {
	case len(s.Profiles) == 0 && s.ActiveProfileID != "":
		add("activeProfileId", "set to %q but there are no profiles", s.ActiveProfileID)
	case len(s.Profiles) > 0 && !profiles[s.ActiveProfileID]:
		add("activeProfileId", "%q does not reference an existing profile", s.ActiveProfileID)
	}

	owned := func(collection string, i int, id, profileID string) {
		if id == "" {
			add(fmt.Sprintf("%s[%d].id", collection, i), "id is required")
		}
		if !profiles[profileID] {
			add(fmt.Sprintf("%s[%d].profileId", collection, i), "unknown profile %q", profileID)
		}
	}

	meds := make(map[string]bool, len(s.Medications))
	for i, m := range s.Medications {
		owned("medications", i, m.ID, m.ProfileID)
		meds[m.ID] = true
	}
	for i, sc := range s.Schedules {
		owned("schedules", i, sc.ID, sc.ProfileID)
		if !meds[sc.MedicationID] {
			add(fmt.Sprintf("schedules[%d].medicationId", i), "unknown medication %q", sc.MedicationID)
		}
		if sc.Scheme == nil {
			add(fmt.Sprintf("schedules[%d].scheme", i), "scheme is required")
		}
	}
	for i, it := range s.Inventory {
		owned("inventory", i, it.ID, it.ProfileID)
	}
	for i, e := range s.Events {
		if e.ID == "" {
			add(fmt.Sprintf("events[%d].id", i), "id is required")
		}
		if !ValidEventTypes[e.Type] {
			add(fmt.Sprintf("events[%d].type", i), "unknown event type %q", e.Type)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
