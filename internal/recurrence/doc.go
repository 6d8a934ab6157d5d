// Package recurrence expands a schedule's recurrence rule into the planned
// clock times of one calendar date.
//
// PlannedTimes is pure: the same schedule and date always yield the same
// multiset of times, ascending. Nothing here reads the clock or the event log.
//
// Malformed time strings are skipped rather than fatal, so one bad entry
// cannot blank an otherwise valid schedule. Skips are reported through
// SkippedError alongside the times that did parse.
package recurrence
