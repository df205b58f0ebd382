package pipeline

import (
	"context"
	"errors"
	"fmt"

	"idea2blog/extract"
	"idea2blog/generator"
	"idea2blog/session"
)

// ErrExtractionFailed means a stage reply stayed unparseable after the repair attempt.
var ErrExtractionFailed = errors.New("extraction failed")

// StageError is returned by every Orchestrator operation. Stage is the
// human-readable stage or operation name; Err keeps the underlying kind.
type StageError struct {
	Stage     string
	SessionID string
	Err       error
}

func (e *StageError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (session %s): %v", e.Stage, e.SessionID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Kind is a failure category callers can branch on.
type Kind string

const (
	KindModelUnavailable  Kind = "model_unavailable"
	KindModelRejected     Kind = "model_rejected"
	KindMissingField      Kind = "missing_field"
	KindMalformedField    Kind = "malformed_field"
	KindExtractionFailed  Kind = "extraction_failed"
	KindInvalidTransition Kind = "invalid_transition"
	KindSessionNotFound   Kind = "session_not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindSessionBusy       Kind = "session_busy"
	KindInternal          Kind = "internal"
)

// KindOf classifies err. Nil maps to "".
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, session.ErrSessionNotFound):
		return KindSessionNotFound
	case errors.Is(err, session.ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, session.ErrLockWait):
		return KindSessionBusy
	case errors.Is(err, ErrExtractionFailed):
		return KindExtractionFailed
	case errors.Is(err, extract.ErrMissingField):
		return KindMissingField
	case errors.Is(err, extract.ErrMalformedField):
		return KindMalformedField
	case errors.Is(err, generator.ErrModelRejected):
		return KindModelRejected
	case errors.Is(err, generator.ErrModelUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindModelUnavailable
	default:
		return KindInternal
	}
}

// StageOf returns the stage name carried by err, if any.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
