package inventory

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/testutil"
)

var now = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func newHandler() *Handler {
	return NewHandler(testutil.NewSequentialIDs("inv"), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func stockedState(qty, threshold float64) *model.AppState {
	st := model.NewDefaultState(now)
	st.Medications = []model.Medication{{ID: "med-1", ProfileID: model.DefaultProfileID, Name: "Aspirin"}}
	st.Inventory = []model.InventoryItem{{
		ID: "item-1", ProfileID: model.DefaultProfileID, MedicationID: "med-1",
		Quantity: qty, Unit: "tablet", LowStockThreshold: threshold,
	}}
	return st
}

func TestLevelOf(t *testing.T) {
	assert.Equal(t, LevelOK, LevelOf(&model.InventoryItem{Quantity: 10, LowStockThreshold: 5}))
	assert.Equal(t, LevelLow, LevelOf(&model.InventoryItem{Quantity: 5, LowStockThreshold: 5}))
	assert.Equal(t, LevelEmpty, LevelOf(&model.InventoryItem{Quantity: 0, LowStockThreshold: 5}))
}

func TestApplyTaken_Decrements(t *testing.T) {
	st := stockedState(10, 3)
	c, ok := newHandler().ApplyTaken(st, model.DefaultProfileID, "med-1", 2, now)
	require.True(t, ok)
	assert.Equal(t, 10.0, c.Before)
	assert.Equal(t, 8.0, c.After)
	assert.Equal(t, 2.0, c.Applied())
	assert.Equal(t, LevelOK, c.Level)
	assert.False(t, c.Crossed)
	assert.Equal(t, 8.0, st.Inventory[0].Quantity)
	assert.Empty(t, st.ShoppingList)
}

func TestApplyTaken_FlooredAtZero(t *testing.T) {
	st := stockedState(1, 3)
	c, ok := newHandler().ApplyTaken(st, model.DefaultProfileID, "med-1", 2, now)
	require.True(t, ok)
	assert.Equal(t, 0.0, c.After)
	assert.Equal(t, 1.0, c.Applied(), "only what was in stock is removed")
	assert.Equal(t, LevelEmpty, c.Level)
}

func TestApplyTaken_LowStockAddsShoppingItemOnce(t *testing.T) {
	st := stockedState(5, 3)
	h := newHandler()

	c, _ := h.ApplyTaken(st, model.DefaultProfileID, "med-1", 2, now)
	assert.True(t, c.Crossed)
	require.Len(t, st.ShoppingList, 1)
	assert.Equal(t, "Aspirin", st.ShoppingList[0].Name)

	h.ApplyTaken(st, model.DefaultProfileID, "med-1", 1, now)
	assert.Len(t, st.ShoppingList, 1, "an open entry is not duplicated")

	st.Settings.AddLowStockToShoppingList = false
	st.ShoppingList = nil
	h.ApplyTaken(st, model.DefaultProfileID, "med-1", 1, now)
	assert.Empty(t, st.ShoppingList)
}

func TestApplyTaken_NoOp(t *testing.T) {
	h := newHandler()

	st := stockedState(10, 3)
	st.Settings.AutoDecrementInventory = false
	_, ok := h.ApplyTaken(st, model.DefaultProfileID, "med-1", 1, now)
	assert.False(t, ok, "auto-decrement disabled")

	st = stockedState(10, 3)
	_, ok = h.ApplyTaken(st, model.DefaultProfileID, "other", 1, now)
	assert.False(t, ok, "no record")
	_, ok = h.ApplyTaken(st, model.DefaultProfileID, "med-1", 0, now)
	assert.False(t, ok, "zero amount")
	assert.Equal(t, 10.0, st.Inventory[0].Quantity)
}

func TestRestore(t *testing.T) {
	st := stockedState(4, 3)
	c, ok := newHandler().Restore(st, model.DefaultProfileID, "med-1", 2, now)
	require.True(t, ok)
	assert.Equal(t, 6.0, c.After)
}

func TestAdjust(t *testing.T) {
	st := stockedState(4, 3)
	h := newHandler()

	c, err := h.Adjust(st, Adjustment{ProfileID: model.DefaultProfileID, MedicationID: "med-1", Quantity: 30, Reason: "refill"}, now)
	require.NoError(t, err)
	assert.Equal(t, 30.0, c.After)
	require.Len(t, st.Events, 1)
	assert.Equal(t, model.EventInventoryAdjusted, st.Events[0].Type)
	amount, ok := st.Events[0].MetaFloat(model.MetaAmount)
	require.True(t, ok)
	assert.Equal(t, 26.0, amount)

	_, err = h.Adjust(st, Adjustment{ProfileID: model.DefaultProfileID, MedicationID: "med-2", Quantity: 5}, now)
	assert.ErrorIs(t, err, ErrNoInventory)

	c, err = h.Adjust(st, Adjustment{ProfileID: model.DefaultProfileID, MedicationID: "med-2", Quantity: 5, Unit: "ml", LowStockThreshold: 1}, now)
	require.NoError(t, err)
	assert.Len(t, st.Inventory, 2)
	assert.Equal(t, LevelOK, c.Level)

	_, err = h.Adjust(st, Adjustment{ProfileID: model.DefaultProfileID, MedicationID: "med-1", Quantity: -1}, now)
	assert.Error(t, err)
}

func TestStatusFor_DaysRemaining(t *testing.T) {
	st := stockedState(28, 5)
	st.Schedules = []model.Schedule{{
		ID: "sched-1", ProfileID: model.DefaultProfileID, MedicationID: "med-1",
		Scheme:     model.Daily{TimesPerDay: 2, Times: []string{"08:00", "20:00"}},
		StartDate:  model.MustDate("2024-01-01"),
		DoseAmount: 1,
	}}

	statuses := StatusFor(st, model.DefaultProfileID, model.MustDate("2024-01-01"))
	require.Len(t, statuses, 1)
	s := statuses[0]
	assert.Equal(t, "Aspirin", s.MedicationName)
	assert.Equal(t, LevelOK, s.Level)
	assert.InDelta(t, 2.0, s.DailyUse, 1e-9)
	require.NotNil(t, s.DaysRemaining)
	assert.InDelta(t, 14.0, *s.DaysRemaining, 1e-9)

	st.Schedules[0].IsPaused = true
	statuses = StatusFor(st, model.DefaultProfileID, model.MustDate("2024-01-01"))
	assert.Nil(t, statuses[0].DaysRemaining, "paused schedules consume nothing")

	assert.Empty(t, StatusFor(st, "someone-else", model.MustDate("2024-01-01")))
}
