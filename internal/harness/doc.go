// Package harness runs medication scenarios as executable contract tests.
//
// A scenario drives a real tracker over an in-memory backend with a
// settable clock and sequential ids, records every action and its outcome
// in a trace, and checks assertions against the trace and the derived
// views once the flow has run.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: snooze_then_late_take
//	description: "A snoozed dose taken after the snooze is late"
//	start: "2024-01-01T07:00:00Z"
//	timezone: UTC
//	setup:
//	  - action: med.add
//	    args: { id: med-1, name: Aspirin }
//	  - action: schedule.add
//	    args: { id: sched-1, medication: med-1, times: ["08:00"] }
//	flow:
//	  - at: "08:00"
//	    invoke: dose.snooze
//	    args: { instance: sched-1_2024-01-01_08:00, minutes: 15 }
//	    expect:
//	      case: ok
//	      result: { status: snoozed }
//	assertions:
//	  - type: trace_count
//	    action: dose.take
//	    count: 1
//	  - type: final_state
//	    table: doses
//	    where: { id: sched-1_2024-01-01_08:00 }
//	    expect: { status: taken, isLate: true }
//
// A flow step's at moves the clock before the action runs: HH:mm on the
// current day in the scenario zone, or an RFC 3339 timestamp.
//
// # Cases
//
// Every step completes with a case: "ok" on success, otherwise the
// snake_case name of the domain error (already_recorded, prn_too_soon,
// prn_daily_limit, nothing_to_undo, ...). A step without expect must
// complete with "ok".
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: exactly one row of a view (doses, inventory, alerts,
//     events) matches where, and it carries the expected fields
//
// # Golden Snapshots
//
// RunWithGolden compares the final day view (doses, stock and pending
// alerts) with testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
