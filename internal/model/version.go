package model

// Version constants for the persisted document and the application.
const (
	// CurrentSchemaVersion is the schema version this build reads and writes.
	// Documents with a higher version are refused, never coerced.
	CurrentSchemaVersion = 4

	// AppVersion is stamped into export files.
	AppVersion = "0.4.0"
)
