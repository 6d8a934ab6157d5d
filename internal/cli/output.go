package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/medtrack/internal/backup"
	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/store"
	"github.com/roach88/medtrack/internal/tracker"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected action (already recorded, import refused, integrity failure)
	ExitCommandError = 2 // Command error (bad arguments, database cannot be opened, etc.)
)

// Error codes reported in JSON error responses.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeNotFound        = "E002" // Unknown profile, medication, schedule or occurrence
	ErrCodeAlreadyRecorded = "E003" // Occurrence already taken or skipped
	ErrCodeLimit           = "E004" // As-needed limit reached
	ErrCodeInvalidInput    = "E005" // Malformed argument or flag

	ErrCodeCorruption    = "E101" // Primary document failed verification
	ErrCodeUnrecoverable = "E102" // Primary and backup both invalid
	ErrCodeSchemaTooNew  = "E103" // Document or backup written by a newer build
	ErrCodeBackend       = "E104" // Storage read/write failure
	ErrCodeImportFailed  = "E105" // Import candidate malformed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err for JSON responses.
func ErrorCode(err error) string {
	switch store.KindOf(err) {
	case store.KindCorruptionDetected:
		return ErrCodeCorruption
	case store.KindCorruptionUnrecoverable:
		return ErrCodeUnrecoverable
	case store.KindSchemaTooNew:
		return ErrCodeSchemaTooNew
	case store.KindBackendFailure:
		return ErrCodeBackend
	}
	switch backup.KindOf(err) {
	case backup.KindSchemaTooNew:
		return ErrCodeSchemaTooNew
	case backup.KindValidationFailed:
		return ErrCodeImportFailed
	}
	switch {
	case errors.Is(err, dose.ErrAlreadyRecorded):
		return ErrCodeAlreadyRecorded
	case errors.Is(err, dose.ErrPRNTooSoon), errors.Is(err, dose.ErrPRNDailyLimit):
		return ErrCodeLimit
	case errors.Is(err, dose.ErrUnknownSchedule), errors.Is(err, dose.ErrNotPlanned),
		errors.Is(err, tracker.ErrUnknownProfile), errors.Is(err, tracker.ErrUnknownMedication):
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt, so views implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetEscapeHTML(false)
		return enc.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err through the formatter and returns it as an ExitError
// carrying exitCode, so the process exits accordingly.
func (f *OutputFormatter) Fail(exitCode int, message string, err error) error {
	if outErr := f.Error(ErrorCode(err), fmt.Sprintf("%s: %v", message, err), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
