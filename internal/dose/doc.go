// Package dose derives dose instances from schedules and the event log, and
// records dose actions.
//
// A dose instance is never stored. InstancesForDate recomputes every
// instance of a day from the schedules and the append-only log on each call:
//
//  1. The newest non-undone DOSE_POSTPONED event for the occurrence governs
//     its snooze and moves the effective time to the snooze target.
//  2. A DOSE_TAKEN event matching the original or the snoozed time makes it
//     taken, with a late flag when the action minute is after the plan.
//  3. Else a matching DOSE_SKIPPED event makes it skipped.
//  4. Else an unexpired snooze makes it snoozed.
//  5. Else it is pending.
//
// A DOSE_UNDONE event names the event it neutralizes; neutralized events
// are ignored by every step above, which returns the occurrence to pending
// without deleting history.
//
// Recorder is the write side. Only a new DOSE_TAKEN recorded through it
// touches inventory; queries never do.
package dose
