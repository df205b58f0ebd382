package generator

import (
	"errors"
	"net/http"
)

var (
	// ErrModelUnavailable marks transient failures: network, quota, timeouts, 5xx.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelRejected marks calls the provider refused; retrying cannot help.
	ErrModelRejected = errors.New("model rejected request")
)

type modelError struct {
	kind error
	err  error
}

func (e *modelError) Error() string   { return e.kind.Error() + ": " + e.err.Error() }
func (e *modelError) Unwrap() []error { return []error{e.kind, e.err} }

// Unavailable wraps err as a transient model failure.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrModelUnavailable) {
		return err
	}
	return &modelError{kind: ErrModelUnavailable, err: err}
}

// Rejected wraps err as a non-retryable model failure.
func Rejected(err error) error {
	if err == nil || errors.Is(err, ErrModelRejected) {
		return err
	}
	return &modelError{kind: ErrModelRejected, err: err}
}

// classifyStatus maps an HTTP status from a provider to a failure kind.
func classifyStatus(code int, err error) error {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code == http.StatusTooManyRequests,
		code >= http.StatusInternalServerError:
		return Unavailable(err)
	case code >= http.StatusBadRequest:
		return Rejected(err)
	default:
		return Unavailable(err)
	}
}
