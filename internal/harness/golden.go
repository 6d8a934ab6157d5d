package harness

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/tracker"
)

// DaySnapshot is the golden view of one day: its occurrences, the stock
// they drew on and the alerts still open when the flow ended. Times are
// HH:mm in the document zone.
type DaySnapshot struct {
	Scenario  string     `json:"scenario"`
	Date      string     `json:"date"`
	Doses     []DoseRow  `json:"doses"`
	Inventory []StockRow `json:"inventory"`
	Alerts    []string   `json:"alerts"`
}

// DoseRow is one occurrence in a DaySnapshot.
type DoseRow struct {
	ID         string `json:"id"`
	Medication string `json:"medication"`
	Status     string `json:"status"`
	Planned    string `json:"planned"`
	Effective  string `json:"effective"`
	Late       bool   `json:"late"`
}

// StockRow is one inventory record in a DaySnapshot.
type StockRow struct {
	Medication string  `json:"medication"`
	Quantity   float64 `json:"quantity"`
	Level      string  `json:"level"`
}

// TakeSnapshot renders the active profile's view of date.
func TakeSnapshot(tr *tracker.Tracker, name string, date model.Date) (*DaySnapshot, error) {
	st, err := tr.Snapshot()
	if err != nil {
		return nil, err
	}
	loc := st.Settings.Location()
	hhmm := func(t time.Time) string { return t.In(loc).Format("15:04") }

	snap := &DaySnapshot{
		Scenario:  name,
		Date:      date.String(),
		Doses:     []DoseRow{},
		Inventory: []StockRow{},
		Alerts:    []string{},
	}

	doses, err := tr.DosesForDate("", date)
	if err != nil {
		return nil, err
	}
	for _, d := range doses {
		snap.Doses = append(snap.Doses, DoseRow{
			ID:         d.ID,
			Medication: d.MedicationName,
			Status:     string(d.Status),
			Planned:    hhmm(d.PlannedAt),
			Effective:  hhmm(d.EffectiveAt),
			Late:       d.IsLate,
		})
	}

	stock, err := tr.InventoryStatus("")
	if err != nil {
		return nil, err
	}
	for _, s := range stock {
		snap.Inventory = append(snap.Inventory, StockRow{
			Medication: s.MedicationName,
			Quantity:   s.Item.Quantity,
			Level:      string(s.Level),
		})
	}

	alerts, err := tr.PendingAlerts("")
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		snap.Alerts = append(snap.Alerts, a.DoseInstanceID)
	}
	return snap, nil
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s *DaySnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its day view with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// It returns the result so callers can check Pass as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's day view with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap := result.Day
	if snap == nil {
		snap = &DaySnapshot{Scenario: name, Doses: []DoseRow{}, Inventory: []StockRow{}, Alerts: []string{}}
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
