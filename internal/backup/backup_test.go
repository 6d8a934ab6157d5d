package backup

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/testutil"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleState() *model.AppState {
	st := model.NewDefaultState(now)
	st.Medications = []model.Medication{{ID: "med-1", ProfileID: model.DefaultProfileID, Name: "Aspirin"}}
	st.Schedules = []model.Schedule{{
		ID: "sched-1", ProfileID: model.DefaultProfileID, MedicationID: "med-1",
		Scheme:     model.Weekly{Weekdays: []int{1, 3, 5}, Times: []string{"08:00"}},
		StartDate:  model.MustDate("2024-01-01"),
		DoseAmount: 1, DoseUnit: "tablet",
	}}
	st.Inventory = []model.InventoryItem{{
		ID: "item-1", ProfileID: model.DefaultProfileID, MedicationID: "med-1", Quantity: 20, Unit: "tablet",
	}}
	st.Events = []model.Event{{
		ID: "evt-1", TS: now, Type: model.EventDoseTaken, ProfileID: model.DefaultProfileID, EntityID: "sched-1",
		Metadata: map[string]any{model.MetaScheduleID: "sched-1", model.MetaPlannedAt: "2024-03-01T08:00:00Z"},
	}}
	return st
}

func exported(t *testing.T, st *model.AppState) []byte {
	t.Helper()
	raw, err := Export(st, model.AppVersion, now)
	require.NoError(t, err)
	return raw
}

// patch decodes an export, applies fn and re-encodes it.
func patch(t *testing.T, raw []byte, fn func(env map[string]any)) []byte {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	fn(env)
	out, err := json.Marshal(env)
	require.NoError(t, err)
	return out
}

func dataOf(env map[string]any) map[string]any {
	return env["data"].(map[string]any)
}

func TestExport_Envelope(t *testing.T) {
	raw := exported(t, sampleState())
	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "2024-03-01T12:00:00Z", env["exportDate"])
	assert.Equal(t, model.AppVersion, env["appVersion"])
	assert.Equal(t, float64(model.CurrentSchemaVersion), env["schemaVersion"])
	assert.Contains(t, dataOf(env), "events")
}

func TestValidate_RoundTrip(t *testing.T) {
	c, err := Validate(exported(t, sampleState()))
	require.NoError(t, err)
	assert.False(t, c.Preview.Migrated)
	assert.Equal(t, model.CurrentSchemaVersion, c.Preview.SourceVersion)
	assert.Equal(t, model.AppVersion, c.Preview.AppVersion)
	assert.Equal(t, now, c.Preview.ExportDate)
	assert.Equal(t, 1, c.Preview.Counts.Schedules)
	assert.Equal(t, 1, c.Preview.Counts.Events)

	want, err := model.MarshalState(sampleState())
	require.NoError(t, err)
	got, err := model.MarshalState(c.State)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestValidate_SchemaTooNew(t *testing.T) {
	newer := float64(model.CurrentSchemaVersion + 1)
	cases := map[string]func(env map[string]any){
		"envelope": func(env map[string]any) { env["schemaVersion"] = newer },
		"document": func(env map[string]any) { dataOf(env)["schemaVersion"] = newer },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(patch(t, exported(t, sampleState()), fn))
			require.Error(t, err)
			assert.True(t, IsSchemaTooNew(err))
			assert.Contains(t, err.Error(), "newer than supported")
		})
	}
}

func TestValidate_MigratesOlderDocuments(t *testing.T) {
	raw := []byte(`{
		"exportDate": "2023-06-01T00:00:00Z",
		"appVersion": "0.1.0",
		"schemaVersion": 1,
		"data": {
			"medications": [{"id": "m1", "name": "Aspirin"}],
			"schedules": [{"id": "s1", "medicationId": "m1",
				"scheme": {"type": "daily", "timesPerDay": 1, "times": ["08:00"]},
				"startDate": "2023-01-01"}],
			"events": []
		}
	}`)
	c, err := Validate(raw)
	require.NoError(t, err)
	assert.True(t, c.Preview.Migrated)
	assert.Equal(t, 1, c.Preview.SourceVersion)
	assert.Equal(t, model.CurrentSchemaVersion, c.State.SchemaVersion)
	assert.Equal(t, model.DefaultProfileID, c.State.ActiveProfileID)
	assert.Equal(t, model.DefaultProfileID, c.State.Schedules[0].ProfileID)
	assert.True(t, c.State.Settings.AutoDecrementInventory)
	assert.NotNil(t, c.State.Inventory)
}

func TestValidate_Rejects(t *testing.T) {
	base := exported(t, sampleState())
	cases := []struct {
		name   string
		raw    []byte
		reason string
	}{
		{name: "not json", raw: []byte("{oops"), reason: "not a JSON export"},
		{name: "array", raw: []byte("[]"), reason: "not a JSON export"},
		{name: "no data", raw: []byte(`{"schemaVersion": 4}`), reason: "missing data"},
		{
			name: "empty profile id",
			raw: patch(t, base, func(env map[string]any) {
				dataOf(env)["profiles"].([]any)[0].(map[string]any)["id"] = ""
			}),
			reason: "profiles",
		},
		{
			name: "unknown event type",
			raw: patch(t, base, func(env map[string]any) {
				dataOf(env)["events"].([]any)[0].(map[string]any)["type"] = "DOSE_EATEN"
			}),
			reason: "events",
		},
		{
			name: "zero interval",
			raw: patch(t, base, func(env map[string]any) {
				sched := dataOf(env)["schedules"].([]any)[0].(map[string]any)
				sched["scheme"] = map[string]any{"type": "intervalDays", "interval": 0, "times": []any{"08:00"}}
			}),
			reason: "schedules",
		},
		{
			name: "dangling medication",
			raw: patch(t, base, func(env map[string]any) {
				dataOf(env)["schedules"].([]any)[0].(map[string]any)["medicationId"] = "med-404"
			}),
			reason: "unknown medication",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.raw)
			require.Error(t, err)
			assert.Equal(t, KindValidationFailed, KindOf(err))
			var ie *ImportError
			require.ErrorAs(t, err, &ie)
			assert.Contains(t, ie.Reason, tc.reason)
		})
	}
}

func TestImportReplace(t *testing.T) {
	current := model.NewDefaultState(now)
	c, err := Validate(exported(t, sampleState()))
	require.NoError(t, err)

	im := NewImporter(testutil.NewSequentialIDs("imp"))
	next, err := im.ImportReplace(current, c, now)
	require.NoError(t, err)

	require.Len(t, next.Events, 2)
	audit := next.Events[1]
	assert.Equal(t, model.EventDataImported, audit.Type)
	assert.Equal(t, "imp-1", audit.ID)
	assert.Equal(t, string(StrategyReplace), audit.MetaString(model.MetaStrategy))
	assert.Equal(t, current.Counts().AsMap(), audit.Metadata[model.MetaPriorCounts])
	assert.Equal(t, c.State.Counts().AsMap(), audit.Metadata[model.MetaNewCounts])

	assert.Empty(t, current.Schedules, "current is not modified")
	assert.Len(t, c.State.Events, 1, "candidate is not modified")
}

func TestImportMerge_AddsOnlyUnknownIDs(t *testing.T) {
	current := sampleState()
	current.Medications[0].Name = "Aspirin (local)"

	incoming := sampleState()
	incoming.Medications[0].Name = "Aspirin (remote)"
	incoming.Medications = append(incoming.Medications, model.Medication{ID: "med-2", ProfileID: model.DefaultProfileID, Name: "Zinc"})
	incoming.Profiles = append(incoming.Profiles, model.Profile{ID: "profile-2", Name: "Kid"})
	incoming.Events = append(incoming.Events, model.Event{
		ID: "evt-2", TS: now, Type: model.EventDoseSkipped, ProfileID: model.DefaultProfileID,
	})
	c, err := Validate(exported(t, incoming))
	require.NoError(t, err)

	im := NewImporter(testutil.NewSequentialIDs("imp"))
	next, added, err := im.ImportMerge(current, c, now)
	require.NoError(t, err)

	assert.Equal(t, 1, added.Medications)
	assert.Equal(t, 1, added.Profiles)
	assert.Equal(t, 1, added.Events)
	assert.Zero(t, added.Schedules)

	med, ok := next.Medication("med-1")
	require.True(t, ok)
	assert.Equal(t, "Aspirin (local)", med.Name, "existing entities are never updated")
	_, ok = next.Medication("med-2")
	assert.True(t, ok)
	assert.Equal(t, model.DefaultProfileID, next.ActiveProfileID)

	last := next.Events[len(next.Events)-1]
	assert.Equal(t, model.EventDataImported, last.Type)
	assert.Equal(t, string(StrategyMerge), last.MetaString(model.MetaStrategy))
	assert.Len(t, current.Medications, 1, "current is not modified")
}

func TestImportMerge_IsIdempotent(t *testing.T) {
	current := sampleState()
	c, err := Validate(exported(t, sampleState()))
	require.NoError(t, err)

	im := NewImporter(testutil.NewSequentialIDs("imp"))
	next, added, err := im.ImportMerge(current, c, now)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{}, added)
	// Only the audit event is new.
	assert.Len(t, next.Events, len(current.Events)+1)
}

func TestImportError_Message(t *testing.T) {
	err := rejected(KindSchemaTooNew, nil, "version %d", 9)
	assert.True(t, strings.HasPrefix(err.Error(), "import rejected: SCHEMA_TOO_NEW"))
	assert.Equal(t, ImportErrorKind(""), KindOf(assert.AnError))
}
