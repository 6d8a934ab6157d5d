package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/tracker"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Action, event.Args)
			}
		}
	}
	return buf.String()
}

// assertTraceContains checks for an invocation of the action whose args
// contain the expected ones.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want, _ := normalize(assertion.Args).(map[string]any)
	for _, event := range trace {
		if event.Type != EventInvocation || event.Action != assertion.Action {
			continue
		}
		args, _ := event.Args.(map[string]any)
		if _, ok := matchFields(args, want); ok {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first invocation of each action comes
// after the first invocation of the one before it. Other actions may
// appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		if _, seen := positions[event.Action]; !seen {
			positions[event.Action] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(assertion.Actions); i++ {
		prev, curr := assertion.Actions[i-1], assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState finds the single row of a view matching Where and
// checks the expected fields on it.
func assertFinalState(tr *tracker.Tracker, assertion Assertion) error {
	rows, err := viewRows(tr, assertion)
	if err != nil {
		return err
	}
	where, _ := normalize(assertion.Where).(map[string]any)

	var matched []map[string]any
	for _, row := range rows {
		if _, ok := matchFields(row, where); ok {
			matched = append(matched, row)
		}
	}
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhere(where)),
			Actual:   fmt.Sprintf("row not found among %d rows", len(rows)),
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhere(where)),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matched)),
		}
	}

	want, _ := normalize(assertion.Expect).(map[string]any)
	if key, ok := matchFields(matched[0], want); !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("field %q = %v", key, want[key]),
			Actual:   fmt.Sprintf("field %q = %v", key, matched[0][key]),
		}
	}
	return nil
}

// viewRows renders a view as JSON-shaped rows. Inventory rows flatten the
// stock record alongside its derived level.
func viewRows(tr *tracker.Tracker, assertion Assertion) ([]map[string]any, error) {
	var rows []map[string]any
	switch assertion.Table {
	case TableDoses:
		date := tr.Today()
		if assertion.Date != "" {
			d, err := model.ParseDate(assertion.Date)
			if err != nil {
				return nil, err
			}
			date = d
		}
		doses, err := tr.DosesForDate("", date)
		if err != nil {
			return nil, err
		}
		for _, d := range doses {
			rows = append(rows, toMap(d))
		}
	case TableInventory:
		stock, err := tr.InventoryStatus("")
		if err != nil {
			return nil, err
		}
		for _, s := range stock {
			row := toMap(s.Item)
			row["medicationName"] = s.MedicationName
			row["level"] = string(s.Level)
			row["dailyUse"] = s.DailyUse
			rows = append(rows, row)
		}
	case TableAlerts:
		alerts, err := tr.PendingAlerts("")
		if err != nil {
			return nil, err
		}
		for _, a := range alerts {
			rows = append(rows, toMap(a))
		}
	case TableEvents:
		st, err := tr.Snapshot()
		if err != nil {
			return nil, err
		}
		for _, e := range st.Events {
			rows = append(rows, toMap(e))
		}
	default:
		return nil, fmt.Errorf("unknown table %q", assertion.Table)
	}
	return rows, nil
}

// matchFields reports whether actual carries every expected field. On a
// mismatch it returns the offending key. A field absent from actual
// matches an expected zero value, since zero fields are omitted on
// encoding.
func matchFields(actual, expected map[string]any) (string, bool) {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := expected[key]
		got, exists := actual[key]
		if !exists {
			if isZero(want) {
				continue
			}
			return key, false
		}
		if !valuesEqual(got, want) {
			return key, false
		}
	}
	return "", true
}

// valuesEqual compares JSON-shaped values. Nested maps are compared as
// subsets.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if em, ok := expected.(map[string]any); ok {
		am, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		_, match := matchFields(am, em)
		return match
	}
	return reflect.DeepEqual(actual, expected)
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case float64:
		return x == 0
	case string:
		return x == ""
	}
	return false
}

func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// AssertionContext gives final_state assertions access to the views.
type AssertionContext struct {
	Tracker *tracker.Tracker
	Ctx     context.Context
}

// EvaluateAssertions evaluates every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Tracker == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a tracker", i)
			} else {
				err = assertFinalState(actx.Tracker, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
