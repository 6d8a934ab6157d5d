package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemeType names a recurrence variant on the wire.
type SchemeType string

const (
	SchemeDaily         SchemeType = "daily"
	SchemeWeekly        SchemeType = "weekly"
	SchemeIntervalDays  SchemeType = "intervalDays"
	SchemeIntervalHours SchemeType = "intervalHours"
	SchemeCourseDays    SchemeType = "courseDays"
	SchemePRN           SchemeType = "prn"
)

// Scheme is the recurrence rule attached to a schedule.
//
// The set of implementations is closed: Daily, Weekly, IntervalDays,
// IntervalHours, CourseDays and PRN. Consumers switch on the concrete type.
type Scheme interface {
	Type() SchemeType
	isScheme()
}

// Daily occurs every day at each of Times.
type Daily struct {
	TimesPerDay int      `json:"timesPerDay"`
	Times       []string `json:"times"`
}

// Weekly occurs on the listed weekdays (Sunday = 0) at each of Times.
type Weekly struct {
	Weekdays []int    `json:"weekdays"`
	Times    []string `json:"times"`
}

// IntervalDays occurs every Interval days counted from the start date.
type IntervalDays struct {
	Interval int      `json:"interval"`
	Times    []string `json:"times"`
}

// IntervalHours occurs every Interval hours, anchored at local midnight.
type IntervalHours struct {
	Interval int `json:"interval"`
}

// CourseDays occurs daily for Days days from the start date.
type CourseDays struct {
	Days  int      `json:"days"`
	Times []string `json:"times"`
}

// PRN is "as needed": no planned occurrences, only log-time limits.
type PRN struct {
	MinIntervalHours *float64 `json:"minIntervalHours,omitempty"`
	MaxPerDay        *int     `json:"maxPerDay,omitempty"`
}

func (Daily) Type() SchemeType         { return SchemeDaily }
func (Weekly) Type() SchemeType        { return SchemeWeekly }
func (IntervalDays) Type() SchemeType  { return SchemeIntervalDays }
func (IntervalHours) Type() SchemeType { return SchemeIntervalHours }
func (CourseDays) Type() SchemeType    { return SchemeCourseDays }
func (PRN) Type() SchemeType           { return SchemePRN }

func (Daily) isScheme()         {}
func (Weekly) isScheme()        {}
func (IntervalDays) isScheme()  {}
func (IntervalHours) isScheme() {}
func (CourseDays) isScheme()    {}
func (PRN) isScheme()           {}

// Schedule is a recurrence rule for one medication of one profile.
type Schedule struct {
	ID           string
	ProfileID    string
	MedicationID string
	Scheme       Scheme
	StartDate    Date
	EndDate      *Date
	IsPaused     bool
	DoseAmount   float64
	DoseUnit     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActiveOn reports whether d falls inside [StartDate, EndDate].
func (s *Schedule) ActiveOn(d Date) bool {
	if d.Before(s.StartDate) {
		return false
	}
	if s.EndDate != nil && d.After(*s.EndDate) {
		return false
	}
	return true
}

type scheduleJSON struct {
	ID           string          `json:"id"`
	ProfileID    string          `json:"profileId"`
	MedicationID string          `json:"medicationId"`
	Scheme       json.RawMessage `json:"scheme"`
	StartDate    Date            `json:"startDate"`
	EndDate      *Date           `json:"endDate,omitempty"`
	IsPaused     bool            `json:"isPaused,omitempty"`
	DoseAmount   float64         `json:"doseAmount"`
	DoseUnit     string          `json:"doseUnit,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// MarshalJSON renders the scheme as a tagged object.
func (s Schedule) MarshalJSON() ([]byte, error) {
	scheme, err := MarshalScheme(s.Scheme)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", s.ID, err)
	}
	return json.Marshal(scheduleJSON{
		ID:           s.ID,
		ProfileID:    s.ProfileID,
		MedicationID: s.MedicationID,
		Scheme:       scheme,
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		IsPaused:     s.IsPaused,
		DoseAmount:   s.DoseAmount,
		DoseUnit:     s.DoseUnit,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	})
}

// UnmarshalJSON decodes the tagged scheme into its concrete variant.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw scheduleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	scheme, err := UnmarshalScheme(raw.Scheme)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", raw.ID, err)
	}
	*s = Schedule{
		ID:           raw.ID,
		ProfileID:    raw.ProfileID,
		MedicationID: raw.MedicationID,
		Scheme:       scheme,
		StartDate:    raw.StartDate,
		EndDate:      raw.EndDate,
		IsPaused:     raw.IsPaused,
		DoseAmount:   raw.DoseAmount,
		DoseUnit:     raw.DoseUnit,
		CreatedAt:    raw.CreatedAt,
		UpdatedAt:    raw.UpdatedAt,
	}
	return nil
}

// MarshalScheme encodes a scheme as {"type": ..., <variant fields>}.
func MarshalScheme(sc Scheme) ([]byte, error) {
	if sc == nil {
		return nil, fmt.Errorf("missing scheme")
	}
	body, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal scheme: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal scheme: %w", err)
	}
	typ, _ := json.Marshal(sc.Type())
	fields["type"] = typ
	return json.Marshal(fields)
}

// UnmarshalScheme decodes a tagged scheme object.
func UnmarshalScheme(data []byte) (Scheme, error) {
	var tag struct {
		Type SchemeType `json:"type"`
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("missing scheme")
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode scheme: %w", err)
	}

	var (
		sc  Scheme
		err error
	)
	switch tag.Type {
	case SchemeDaily:
		var v Daily
		err = json.Unmarshal(data, &v)
		sc = v
	case SchemeWeekly:
		var v Weekly
		err = json.Unmarshal(data, &v)
		sc = v
	case SchemeIntervalDays:
		var v IntervalDays
		err = json.Unmarshal(data, &v)
		sc = v
	case SchemeIntervalHours:
		var v IntervalHours
		err = json.Unmarshal(data, &v)
		sc = v
	case SchemeCourseDays:
		var v CourseDays
		err = json.Unmarshal(data, &v)
		sc = v
	case SchemePRN:
		var v PRN
		err = json.Unmarshal(data, &v)
		sc = v
	default:
		return nil, fmt.Errorf("unknown scheme type %q", tag.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s scheme: %w", tag.Type, err)
	}
	return sc, nil
}
