package session

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidInput      = errors.New("invalid input")
	// ErrEmptyResult rejects a stage result without the text it must carry.
	ErrEmptyResult = errors.New("empty stage result")
	// ErrLockWait reports a caller that gave up waiting for a busy session.
	ErrLockWait = errors.New("gave up waiting for session lock")
	errReleased          = errors.New("session handle already released")
)

// TransitionError names the state that refused an operation.
type TransitionError struct {
	State State
	Op    Op
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s while session is %s", e.Op, e.State)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}
