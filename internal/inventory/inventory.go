// Package inventory applies stock side effects of dose actions and reports
// stock levels.
//
// Inventory has no state machine of its own: quantities change only as a
// consequence of a DOSE_TAKEN (and its undo) or an explicit adjustment.
package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/recurrence"
)

// Level classifies remaining stock.
type Level string

const (
	LevelOK    Level = "ok"
	LevelLow   Level = "low"
	LevelEmpty Level = "empty"
)

// ErrNoInventory is returned when adjusting a medication without a record.
var ErrNoInventory = errors.New("no inventory record")

// LevelOf classifies an item. Zero or less is empty; at or below the
// threshold is low.
func LevelOf(it *model.InventoryItem) Level {
	switch {
	case it.Quantity <= 0:
		return LevelEmpty
	case it.Quantity <= it.LowStockThreshold:
		return LevelLow
	default:
		return LevelOK
	}
}

// Change describes one quantity mutation.
type Change struct {
	ItemID       string  `json:"itemId"`
	MedicationID string  `json:"medicationId"`
	Before       float64 `json:"before"`
	After        float64 `json:"after"`
	Level        Level   `json:"level"`
	// Crossed is true when this change moved the item out of LevelOK.
	Crossed bool `json:"crossed"`
}

// Applied returns the amount actually removed (positive) or added (negative).
func (c *Change) Applied() float64 {
	return c.Before - c.After
}

// Handler applies inventory side effects to a document in memory.
type Handler struct {
	ids    model.IDGenerator
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(ids model.IDGenerator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ids: ids, logger: logger}
}

// ApplyTaken decrements the medication's stock by amount, floored at zero.
// It does nothing (ok=false) when auto-decrement is off, the amount is not
// positive, or the profile has no record for the medication.
func (h *Handler) ApplyTaken(st *model.AppState, profileID, medicationID string, amount float64, now time.Time) (*Change, bool) {
	if !st.Settings.AutoDecrementInventory || amount <= 0 {
		return nil, false
	}
	it, ok := st.InventoryFor(profileID, medicationID)
	if !ok {
		return nil, false
	}

	before := LevelOf(it)
	c := &Change{ItemID: it.ID, MedicationID: medicationID, Before: it.Quantity}
	it.Quantity = math.Max(0, it.Quantity-amount)
	it.UpdatedAt = now.UTC()
	c.After = it.Quantity
	c.Level = LevelOf(it)
	c.Crossed = before == LevelOK && c.Level != LevelOK

	if c.Level != LevelOK {
		h.logger.Info("stock low",
			"medication_id", medicationID,
			"quantity", it.Quantity,
			"level", c.Level,
		)
		h.noteShopping(st, it, now)
	}
	return c, true
}

// Restore adds amount back, used when a taken dose is undone. Only the
// amount recorded as decremented is restored.
func (h *Handler) Restore(st *model.AppState, profileID, medicationID string, amount float64, now time.Time) (*Change, bool) {
	if amount <= 0 {
		return nil, false
	}
	it, ok := st.InventoryFor(profileID, medicationID)
	if !ok {
		return nil, false
	}
	c := &Change{ItemID: it.ID, MedicationID: medicationID, Before: it.Quantity}
	it.Quantity += amount
	it.UpdatedAt = now.UTC()
	c.After = it.Quantity
	c.Level = LevelOf(it)
	return c, true
}

// Adjustment is an explicit stock correction (refill, count, loss).
type Adjustment struct {
	ProfileID    string
	MedicationID string
	// Quantity is the new absolute quantity.
	Quantity float64
	// Unit and LowStockThreshold create the record if it does not exist.
	Unit              string
	LowStockThreshold float64
	Reason            string
}

// Adjust sets a medication's stock and logs INVENTORY_ADJUSTED. A missing
// record is created when Unit is given.
func (h *Handler) Adjust(st *model.AppState, adj Adjustment, now time.Time) (*Change, error) {
	if adj.Quantity < 0 {
		return nil, fmt.Errorf("adjust inventory: quantity %v is negative", adj.Quantity)
	}
	it, ok := st.InventoryFor(adj.ProfileID, adj.MedicationID)
	if !ok {
		if adj.Unit == "" {
			return nil, fmt.Errorf("adjust inventory for %s: %w", adj.MedicationID, ErrNoInventory)
		}
		st.Inventory = append(st.Inventory, model.InventoryItem{
			ID:                h.ids.NewID(),
			ProfileID:         adj.ProfileID,
			MedicationID:      adj.MedicationID,
			Unit:              adj.Unit,
			LowStockThreshold: adj.LowStockThreshold,
		})
		it = &st.Inventory[len(st.Inventory)-1]
	}

	c := &Change{ItemID: it.ID, MedicationID: adj.MedicationID, Before: it.Quantity}
	it.Quantity = adj.Quantity
	if adj.LowStockThreshold > 0 {
		it.LowStockThreshold = adj.LowStockThreshold
	}
	it.UpdatedAt = now.UTC()
	c.After = it.Quantity
	c.Level = LevelOf(it)

	st.Append(model.Event{
		ID:        h.ids.NewID(),
		TS:        now,
		Type:      model.EventInventoryAdjusted,
		ProfileID: adj.ProfileID,
		EntityID:  it.ID,
		Metadata: map[string]any{
			model.MetaInventoryID: it.ID,
			model.MetaAmount:      c.After - c.Before,
			model.MetaReason:      adj.Reason,
		},
	})
	return c, nil
}

// noteShopping adds a restock entry unless one is already open.
func (h *Handler) noteShopping(st *model.AppState, it *model.InventoryItem, now time.Time) {
	if !st.Settings.AddLowStockToShoppingList {
		return
	}
	for _, s := range st.ShoppingList {
		if s.ProfileID == it.ProfileID && s.MedicationID == it.MedicationID && !s.Done {
			return
		}
	}
	name := it.MedicationID
	if med, ok := st.Medication(it.MedicationID); ok {
		name = med.Name
	}
	st.ShoppingList = append(st.ShoppingList, model.ShoppingItem{
		ID:           h.ids.NewID(),
		ProfileID:    it.ProfileID,
		MedicationID: it.MedicationID,
		Name:         name,
		AddedAt:      now.UTC(),
	})
}

// Status is the read model for one inventory record.
type Status struct {
	Item           model.InventoryItem `json:"item"`
	MedicationName string              `json:"medicationName"`
	Level          Level               `json:"level"`
	// DailyUse is the average planned consumption over the forecast window.
	DailyUse float64 `json:"dailyUse"`
	// DaysRemaining is nil when nothing is planned.
	DaysRemaining *float64 `json:"daysRemaining,omitempty"`
}

// ForecastDays is the window used to estimate daily consumption.
const ForecastDays = 7

// StatusFor reports the stock of every record owned by a profile, sorted
// by medication name. Consumption is estimated from the profile's active,
// unpaused schedules over the ForecastDays starting at today.
func StatusFor(st *model.AppState, profileID string, today model.Date) []Status {
	use := make(map[string]float64)
	for _, s := range st.SchedulesFor(profileID) {
		if s.IsPaused || s.DoseAmount <= 0 {
			continue
		}
		var doses int
		for i := 0; i < ForecastDays; i++ {
			times, err := recurrence.PlannedTimes(s, today.AddDays(i))
			if err != nil && !recurrence.IsSkipped(err) {
				continue
			}
			doses += len(times)
		}
		use[s.MedicationID] += float64(doses) * s.DoseAmount / ForecastDays
	}

	var out []Status
	for i := range st.Inventory {
		it := st.Inventory[i]
		if it.ProfileID != profileID {
			continue
		}
		s := Status{Item: it, Level: LevelOf(&it), DailyUse: use[it.MedicationID]}
		if med, ok := st.Medication(it.MedicationID); ok {
			s.MedicationName = med.Name
		}
		if s.DailyUse > 0 {
			days := it.Quantity / s.DailyUse
			s.DaysRemaining = &days
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MedicationName < out[j].MedicationName })
	return out
}
