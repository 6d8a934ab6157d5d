package dose

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/medtrack/internal/inventory"
	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/testutil"
)

var (
	day1 = model.MustDate("2024-01-01")
	t0   = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	st    *model.AppState
	clock *testutil.Clock
	rec   *Recorder
}

// newFixture returns a UTC document with one daily schedule at 08:00 and
// 20:00 for "Aspirin", stocked with 10 tablets.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := model.NewDefaultState(t0)
	st.Settings.Timezone = "UTC"
	st.Medications = []model.Medication{{ID: "med-1", ProfileID: model.DefaultProfileID, Name: "Aspirin"}}
	st.Schedules = []model.Schedule{{
		ID: "sched-1", ProfileID: model.DefaultProfileID, MedicationID: "med-1",
		Scheme:     model.Daily{TimesPerDay: 2, Times: []string{"08:00", "20:00"}},
		StartDate:  day1,
		DoseAmount: 1, DoseUnit: "tablet",
	}}
	st.Inventory = []model.InventoryItem{{
		ID: "item-1", ProfileID: model.DefaultProfileID, MedicationID: "med-1",
		Quantity: 10, Unit: "tablet", LowStockThreshold: 2,
	}}
	require.NoError(t, model.Validate(st))

	clock := testutil.NewClock(t0)
	ids := testutil.NewSequentialIDs("evt")
	inv := inventory.NewHandler(testutil.NewSequentialIDs("shop"), discard())
	return &fixture{st: st, clock: clock, rec: NewRecorder(inv, ids, clock, discard())}
}

func (f *fixture) instances() []Instance {
	return f.rec.Reconciler().InstancesForDate(f.st, model.DefaultProfileID, day1, f.clock.Now())
}

func (f *fixture) record(t *testing.T, kind ActionKind, id string, opts ...func(*Action)) *Outcome {
	t.Helper()
	a := Action{Kind: kind, InstanceID: id}
	for _, o := range opts {
		o(&a)
	}
	out, err := f.rec.Record(f.st, a)
	require.NoError(t, err)
	return out
}

func snoozeFor(d time.Duration) func(*Action) {
	return func(a *Action) { a.SnoozeFor = d }
}

func at(ts time.Time) func(*Action) {
	return func(a *Action) { a.At = ts }
}

const morning = "sched-1_2024-01-01_08:00"
