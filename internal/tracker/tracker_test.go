package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medtrack/internal/backup"
	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/inventory"
	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/store"
	"github.com/roach88/medtrack/internal/testutil"
)

var start = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

// flakyBackend fails writes while failWrites is set.
type flakyBackend struct {
	*store.MemoryBackend
	failWrites bool
}

func (b *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	if b.failWrites {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

type env struct {
	backend *flakyBackend
	clock   *testutil.Clock
	tr      *Tracker
}

func open(t *testing.T, backend *flakyBackend, clock *testutil.Clock) *Tracker {
	t.Helper()
	tr, err := Open(context.Background(), backend,
		WithClock(clock),
		WithIDGenerator(testutil.NewSequentialIDs("id")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return tr
}

// newEnv opens a tracker on an empty UTC document with one medication and
// a daily 08:00 schedule.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	e := &env{backend: &flakyBackend{MemoryBackend: store.NewMemoryBackend()}, clock: testutil.NewClock(start)}
	e.tr = open(t, e.backend, e.clock)
	require.NoError(t, e.tr.mutate(ctx, func(st *model.AppState) error {
		st.Settings.Timezone = "UTC"
		return nil
	}))

	med, err := e.tr.AddMedication(ctx, model.Medication{Name: "Aspirin"})
	require.NoError(t, err)
	_, err = e.tr.CreateSchedule(ctx, model.Schedule{
		ID: "sched-1", MedicationID: med.ID,
		Scheme:     model.Daily{TimesPerDay: 1, Times: []string{"08:00"}},
		StartDate:  model.MustDate("2024-01-01"),
		DoseAmount: 1, DoseUnit: "tablet",
	})
	require.NoError(t, err)
	_, err = e.tr.AdjustInventory(ctx, inventory.Adjustment{
		MedicationID: med.ID, Quantity: 10, Unit: "tablet", LowStockThreshold: 2, Reason: "refill",
	})
	require.NoError(t, err)
	return e
}

func (e *env) stored(t *testing.T) []byte {
	t.Helper()
	raw, ok, err := e.backend.Get(context.Background(), store.KeyPrimary)
	require.NoError(t, err)
	require.True(t, ok)
	return raw
}

const morning = "sched-1_2024-01-01_08:00"

func TestOpen_FreshDocument(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: store.NewMemoryBackend()}
	tr := open(t, backend, testutil.NewClock(start))
	assert.Equal(t, model.DefaultProfileID, tr.ActiveProfileID())

	_, ok, err := backend.Get(context.Background(), store.KeyPrimary)
	require.NoError(t, err)
	assert.True(t, ok, "the default document is persisted on first load")
}

func TestOpen_UnrecoverableIsSurfaced(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: store.NewMemoryBackend()}
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, store.KeyPrimary, []byte(`{"schemaVersion":4}`)))
	require.NoError(t, backend.Set(ctx, store.KeyChecksum, []byte("deadbeef")))

	_, err := Open(ctx, backend, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.Error(t, err)
	assert.True(t, store.IsCorruptionUnrecoverable(err))
}

func TestCreateSchedule_LogsAndValidates(t *testing.T) {
	e := newEnv(t)
	snap, err := e.tr.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, model.DefaultProfileID, snap.Schedules[0].ProfileID)
	assert.Equal(t, model.EventScheduleCreated, snap.Events[0].Type)

	_, err = e.tr.CreateSchedule(context.Background(), model.Schedule{
		MedicationID: snap.Medications[0].ID,
		Scheme:       model.Weekly{Weekdays: []int{7}, Times: []string{"08:00"}},
		StartDate:    model.MustDate("2024-01-01"),
	})
	assert.ErrorContains(t, err, "scheme.weekdays[0]")

	_, err = e.tr.CreateSchedule(context.Background(), model.Schedule{
		MedicationID: "med-404",
		Scheme:       model.Daily{Times: []string{"08:00"}},
		StartDate:    model.MustDate("2024-01-01"),
	})
	assert.ErrorIs(t, err, ErrUnknownMedication)
}

func TestRecordDoseAction_PersistsAcrossReopen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.clock.Set(time.Date(2024, 1, 1, 8, 5, 0, 0, time.UTC))

	out, err := e.tr.RecordDoseAction(ctx, dose.Action{Kind: dose.ActionTake, InstanceID: morning})
	require.NoError(t, err)
	assert.Equal(t, dose.StatusTaken, out.Instance.Status)

	reopened := open(t, e.backend, e.clock)
	doses, err := reopened.DosesForDate("", model.MustDate("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, doses, 1)
	assert.Equal(t, dose.StatusTaken, doses[0].Status)
	assert.True(t, doses[0].IsLate)

	status, err := reopened.InventoryStatus("")
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, 9.0, status[0].Item.Quantity)
}

func TestMutate_FailedSaveLeavesDocument(t *testing.T) {
	e := newEnv(t)
	before := e.stored(t)
	e.backend.failWrites = true

	_, err := e.tr.RecordDoseAction(context.Background(), dose.Action{Kind: dose.ActionTake, InstanceID: morning})
	require.Error(t, err)
	assert.Equal(t, store.KindBackendFailure, store.KindOf(err))

	doses, err := e.tr.DosesForDate("", model.MustDate("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, dose.StatusPending, doses[0].Status)
	assert.Equal(t, before, e.stored(t))
}

func TestGuardianFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.tr.UpdateGuardian(ctx, "", ProfileInput{GuardianModeEnabled: true})
	require.NoError(t, err)

	e.clock.Set(time.Date(2024, 1, 1, 9, 31, 0, 0, time.UTC))
	alerts, err := e.tr.PendingAlerts("")
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	fired, err := e.tr.TriggerAlerts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, fired, 1)

	acked, err := e.tr.AcknowledgeAlert(ctx, "", alerts[0].DoseInstanceID, alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, acked)

	e.clock.Set(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	alerts, err = e.tr.PendingAlerts("")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDeleteProfile_Cascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	kid, err := e.tr.AddProfile(ctx, ProfileInput{Name: "Kid"})
	require.NoError(t, err)
	med, err := e.tr.AddMedication(ctx, model.Medication{ProfileID: kid.ID, Name: "Syrup"})
	require.NoError(t, err)
	_, err = e.tr.CreateSchedule(ctx, model.Schedule{
		MedicationID: med.ID, Scheme: model.Daily{Times: []string{"09:00"}}, StartDate: model.MustDate("2024-01-01"),
	})
	require.NoError(t, err)

	require.NoError(t, e.tr.DeleteProfile(ctx, kid.ID))
	snap, err := e.tr.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Profiles, 1)
	assert.Len(t, snap.Medications, 1)
	assert.Len(t, snap.Schedules, 1)
	for _, ev := range snap.Events {
		assert.NotEqual(t, kid.ID, ev.ProfileID)
	}
	last := snap.Events[len(snap.Events)-1]
	assert.Equal(t, model.EventProfileDeleted, last.Type)
	assert.Equal(t, kid.ID, last.EntityID)

	require.NoError(t, e.tr.DeleteProfile(ctx, model.DefaultProfileID))
	assert.Equal(t, "", e.tr.ActiveProfileID(), "no profiles, no active profile")
	snap, err = e.tr.Snapshot()
	require.NoError(t, err)
	require.NoError(t, model.Validate(snap))

	assert.ErrorIs(t, e.tr.DeleteProfile(ctx, "nope"), ErrUnknownProfile)
}

func TestRemoveMedication_InUse(t *testing.T) {
	e := newEnv(t)
	snap, err := e.tr.Snapshot()
	require.NoError(t, err)
	err = e.tr.RemoveMedication(context.Background(), snap.Medications[0].ID)
	assert.ErrorIs(t, err, ErrMedicationInUse)
}

// A backup one schema version ahead is refused and nothing changes.
func TestImport_SchemaTooNewLeavesDocument(t *testing.T) {
	e := newEnv(t)
	raw, err := e.tr.Export()
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	env["schemaVersion"] = float64(model.CurrentSchemaVersion + 1)
	env["data"].(map[string]any)["schemaVersion"] = float64(model.CurrentSchemaVersion + 1)
	newer, err := json.Marshal(env)
	require.NoError(t, err)

	before := e.stored(t)
	snapBefore, err := e.tr.Snapshot()
	require.NoError(t, err)

	_, err = e.tr.Import(context.Background(), newer, backup.StrategyReplace)
	require.Error(t, err)
	assert.True(t, backup.IsSchemaTooNew(err))

	assert.Equal(t, before, e.stored(t))
	snapAfter, err := e.tr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snapBefore, snapAfter)
}

func TestImport_ReplaceAndMerge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	raw, err := e.tr.Export()
	require.NoError(t, err)

	require.NoError(t, e.tr.Reset(ctx))
	snap, err := e.tr.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Schedules)

	res, err := e.tr.Import(ctx, raw, backup.StrategyReplace)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Preview.Counts.Schedules)
	snap, err = e.tr.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Schedules, 1)
	assert.Equal(t, model.EventDataImported, snap.Events[len(snap.Events)-1].Type)

	res, err = e.tr.Import(ctx, raw, backup.StrategyMerge)
	require.NoError(t, err)
	require.NotNil(t, res.Added)
	assert.Zero(t, res.Added.Schedules)

	_, err = e.tr.Import(ctx, raw, backup.Strategy("upsert"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	e := newEnv(t)
	r, err := e.tr.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, r.PrimaryValid)
	assert.True(t, r.BackupValid)
}

func TestSetTimezone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.Error(t, e.tr.SetTimezone(ctx, "Mars/Olympus"))

	before := e.stored(t)
	require.NoError(t, e.tr.SetTimezone(ctx, "UTC"))
	assert.Equal(t, before, e.stored(t), "unchanged zone writes nothing")

	require.NoError(t, e.tr.SetTimezone(ctx, "Asia/Tokyo"))
	st, err := e.tr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", st.Settings.Timezone)

	// 07:00Z is 16:00 in Tokyo; the 08:00 dose is now planned at 23:00Z the day before.
	doses, err := e.tr.DosesForDate("", model.MustDate("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, doses, 1)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), doses[0].PlannedAt)
}

func TestAddGuardianContact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.tr.AddGuardianContact(ctx, model.GuardianContact{Name: "   "})
	require.Error(t, err)

	_, err = e.tr.AddGuardianContact(ctx, model.GuardianContact{Name: "Sam", ProfileID: "nobody"})
	require.ErrorIs(t, err, ErrUnknownProfile)

	c, err := e.tr.AddGuardianContact(ctx, model.GuardianContact{Name: " Sam ", Phone: "+15550100"})
	require.NoError(t, err)
	assert.Equal(t, "Sam", c.Name)
	assert.Equal(t, model.DefaultProfileID, c.ProfileID)
	assert.NotEmpty(t, c.ID)

	st, err := e.tr.Snapshot()
	require.NoError(t, err)
	require.Len(t, st.GuardianContacts, 1)
	assert.Equal(t, c, st.GuardianContacts[0])
}
