package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline step failures so a run's failure mode is
// diagnosable from the log alone, without re-running the document.
// ValidationLookupError covers reference-table reads and every other database
// access failure inside a run; the message names the failing store.
type ErrorKind string

const (
	KindUnsupportedFormat     ErrorKind = "UnsupportedFormat"
	KindExtractionError       ErrorKind = "ExtractionError"
	KindModelUnavailable      ErrorKind = "ModelUnavailable"
	KindValidationLookupError ErrorKind = "ValidationLookupError"
	KindNotificationError     ErrorKind = "NotificationError"
	KindTimeout               ErrorKind = "Timeout"
)

// StepError is a failure of a single pipeline step. The step name and kind are
// persisted verbatim into the document's error field and the log row.
type StepError struct {
	Step    string
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

func NewStepError(step string, kind ErrorKind, message string, cause error) *StepError {
	return &StepError{Step: step, Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the error kind of err, or empty string if err carries none.
func KindOf(err error) ErrorKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// StepOf returns the failing step name of err, or empty string.
func StepOf(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
