package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField reports a required marker pair that is absent.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedField reports unbalanced or badly nested markers.
	ErrMalformedField = errors.New("malformed field")
)

// Kind classifies a FieldError.
type Kind int

const (
	MissingField Kind = iota + 1
	MalformedField
)

func (k Kind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case MalformedField:
		return "malformed_field"
	default:
		return "unknown"
	}
}

// FieldError names the field that failed extraction.
type FieldError struct {
	Field  string
	Tag    string
	Kind   Kind
	Reason string
}

func (e *FieldError) Error() string {
	if e.Kind == MissingField {
		return fmt.Sprintf("missing field %s: no <%s> marker pair", e.Field, e.Tag)
	}
	return fmt.Sprintf("malformed field %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match the sentinel for the error's kind.
func (e *FieldError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == MissingField
	case ErrMalformedField:
		return e.Kind == MalformedField
	}
	return false
}

func missing(f Field) *FieldError {
	return &FieldError{Field: f.Name, Tag: f.Tag, Kind: MissingField}
}

func malformed(f Field, format string, args ...any) *FieldError {
	return &FieldError{Field: f.Name, Tag: f.Tag, Kind: MalformedField, Reason: fmt.Sprintf(format, args...)}
}
