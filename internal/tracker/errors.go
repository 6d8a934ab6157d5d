package tracker

import "errors"

var (
	// ErrUnknownProfile is returned for a profile id not in the document.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrUnknownMedication is returned for a medication id not in the document.
	ErrUnknownMedication = errors.New("unknown medication")

	// ErrMedicationInUse is returned when removing a medication a schedule
	// still references.
	ErrMedicationInUse = errors.New("medication is referenced by a schedule")
)
