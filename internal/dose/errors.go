package dose

import "errors"

var (
	// ErrUnknownSchedule is returned for a schedule id not in the document.
	ErrUnknownSchedule = errors.New("unknown schedule")

	// ErrNotPlanned is returned when the schedule has no occurrence at the
	// requested date and time.
	ErrNotPlanned = errors.New("no planned occurrence")

	// ErrAlreadyRecorded is returned when taking or skipping an occurrence
	// that is already taken or skipped.
	ErrAlreadyRecorded = errors.New("occurrence already recorded")

	// ErrNothingToUndo is returned when undoing an occurrence with no
	// taken, skipped or snoozed event.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrInvalidSnooze is returned for a non-positive snooze duration.
	ErrInvalidSnooze = errors.New("snooze duration must be positive")

	// ErrNotPRN is returned when logging an ad hoc dose on a planned schedule.
	ErrNotPRN = errors.New("schedule is not as-needed")

	// ErrPRNTooSoon is returned when an as-needed dose violates minIntervalHours.
	ErrPRNTooSoon = errors.New("minimum interval since last dose not reached")

	// ErrPRNDailyLimit is returned when an as-needed dose would exceed maxPerDay.
	ErrPRNDailyLimit = errors.New("daily maximum reached")
)
