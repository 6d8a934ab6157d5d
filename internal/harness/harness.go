package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/medtrack/internal/backup"
	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/guardian"
	"github.com/roach88/medtrack/internal/inventory"
	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/store"
	"github.com/roach88/medtrack/internal/testutil"
	"github.com/roach88/medtrack/internal/tracker"
)

// Harness executes one scenario against a fresh tracker.
type Harness struct {
	tracker *tracker.Tracker
	clock   *testutil.Clock
	loc     *time.Location
	seq     int64
}

// Run executes a scenario and returns its result.
//
// Each run uses a fresh in-memory backend, a clock frozen at the scenario
// start and ids "id-1", "id-2", ... so the same scenario always produces
// the same document. An error is returned only when the scenario could not
// be executed at all; failed expectations and assertions are reported in
// the result.
func Run(scenario *Scenario) (*Result, error) {
	start, err := time.Parse(time.RFC3339, scenario.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	tz := scenario.Timezone
	if tz == "" {
		tz = "UTC"
	}

	ctx := context.Background()
	result := NewResult()
	clock := testutil.NewClock(start)
	notifier := guardian.NotifierFunc(func(_ context.Context, a guardian.Alert, _ []model.GuardianContact) error {
		result.Notified = append(result.Notified, a.ID)
		return nil
	})

	tr, err := tracker.Open(ctx, store.NewMemoryBackend(),
		tracker.WithClock(clock),
		tracker.WithIDGenerator(testutil.NewSequentialIDs("id")),
		tracker.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		tracker.WithNotifier(notifier),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker: %w", err)
	}
	if err := tr.SetTimezone(ctx, tz); err != nil {
		return nil, fmt.Errorf("failed to set timezone: %w", err)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	h := &Harness{tracker: tr, clock: clock, loc: loc}

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Tracker: tr, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	day := h.today()
	if scenario.Golden != "" {
		day = model.MustDate(scenario.Golden)
	}
	snap, err := TakeSnapshot(tr, scenario.Name, day)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot day: %w", err)
	}
	result.Day = snap
	return result, nil
}

// executeSetup runs setup steps in order. A failing setup step aborts the
// run since nothing after it would be meaningful.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		seq := h.next()
		result.AddInvocationTrace(step.Action, "", normalize(step.Args), seq)
		out, err := h.invoke(ctx, step.Action, step.Args)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		result.AddCompletionTrace(CaseOK, out, seq)
	}
	return nil
}

// executeFlow runs flow steps and checks each completion against its
// expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if step.At != "" {
			at, err := h.parseAt(step.At)
			if err != nil {
				return fmt.Errorf("flow step %d: at: %w", i, err)
			}
			h.clock.Set(at)
		}

		seq := h.next()
		result.AddInvocationTrace(step.Invoke, step.At, normalize(step.Args), seq)
		out, err := h.invoke(ctx, step.Invoke, step.Args)
		got := caseOf(err)
		result.AddCompletionTrace(got, out, seq)

		want := CaseOK
		if step.Expect != nil {
			want = step.Expect.Case
		}
		if got != want {
			msg := fmt.Sprintf("flow[%d] %s: expected case %q, got %q", i, step.Invoke, want, got)
			if err != nil {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
			continue
		}
		if step.Expect == nil || len(step.Expect.Result) == 0 {
			continue
		}
		actual, _ := out.(map[string]any)
		expected, _ := normalize(step.Expect.Result).(map[string]any)
		if key, ok := matchFields(actual, expected); !ok {
			result.AddError(fmt.Sprintf("flow[%d] %s: result field %q: expected %v, got %v",
				i, step.Invoke, key, expected[key], actual[key]))
		}
	}
	return nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

func (h *Harness) today() model.Date {
	return model.DateOf(h.clock.Now().In(h.loc))
}

// parseAt reads an RFC 3339 timestamp, or HH:mm on the clock's current day.
func (h *Harness) parseAt(s string) (time.Time, error) {
	if strings.Contains(s, "T") {
		return time.Parse(time.RFC3339, s)
	}
	tod, err := model.ParseTimeOfDay(s)
	if err != nil {
		return time.Time{}, err
	}
	return tod.On(h.today(), h.loc), nil
}

// caseOf names the completion case of an action error.
func caseOf(err error) string {
	var ve model.ValidationErrors
	switch {
	case err == nil:
		return CaseOK
	case errors.Is(err, dose.ErrAlreadyRecorded):
		return "already_recorded"
	case errors.Is(err, dose.ErrUnknownSchedule):
		return "unknown_schedule"
	case errors.Is(err, dose.ErrNotPlanned):
		return "not_planned"
	case errors.Is(err, dose.ErrNothingToUndo):
		return "nothing_to_undo"
	case errors.Is(err, dose.ErrInvalidSnooze):
		return "invalid_snooze"
	case errors.Is(err, dose.ErrNotPRN):
		return "not_prn"
	case errors.Is(err, dose.ErrPRNTooSoon):
		return "prn_too_soon"
	case errors.Is(err, dose.ErrPRNDailyLimit):
		return "prn_daily_limit"
	case errors.Is(err, inventory.ErrNoInventory):
		return "no_inventory"
	case errors.Is(err, tracker.ErrUnknownProfile):
		return "unknown_profile"
	case errors.Is(err, tracker.ErrUnknownMedication):
		return "unknown_medication"
	case errors.Is(err, tracker.ErrMedicationInUse):
		return "medication_in_use"
	case errors.As(err, &ve):
		return "invalid"
	}
	if k := backup.KindOf(err); k != "" {
		return strings.ToLower(string(k))
	}
	if k := store.KindOf(err); k != "" {
		return strings.ToLower(string(k))
	}
	return "error"
}
