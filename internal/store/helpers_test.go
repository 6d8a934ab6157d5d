package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/testutil"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestStore returns a store over a fresh memory backend.
func createTestStore(t *testing.T) (*Store, *MemoryBackend, *testutil.Clock) {
	t.Helper()
	backend := NewMemoryBackend()
	clock := testutil.NewClock(testStart)
	return New(backend, WithClock(clock), WithLogger(discardLogger())), backend, clock
}

// sampleState returns a small valid document.
func sampleState(name string) *model.AppState {
	st := model.NewDefaultState(testStart)
	st.Medications = append(st.Medications, model.Medication{ID: "med-1", ProfileID: model.DefaultProfileID, Name: name})
	st.Schedules = append(st.Schedules, model.Schedule{
		ID:           "sched-1",
		ProfileID:    model.DefaultProfileID,
		MedicationID: "med-1",
		Scheme:       model.Daily{TimesPerDay: 1, Times: []string{"08:00"}},
		StartDate:    model.MustDate("2024-03-01"),
		DoseAmount:   1,
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
	})
	return st
}

// recordingBackend records the order of writes.
type recordingBackend struct {
	*MemoryBackend
	mu     sync.Mutex
	writes []string
	failOn string
}

func (r *recordingBackend) Set(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	r.writes = append(r.writes, key)
	fail := r.failOn == key
	r.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return r.MemoryBackend.Set(ctx, key, value)
}

// brokenBackend fails every read.
type brokenBackend struct{ *MemoryBackend }

func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("io error")
}
