package light

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("light controller closed")

// FieldError describes one rejected duration field.
type FieldError struct {
	Field  string `json:"field" example:"red" doc:"Duration field"`
	Value  string `json:"value" example:"abc" doc:"Rejected input"`
	Reason string `json:"reason" example:"not a number" doc:"Why the input was rejected"`
}

// ValidationError lists duration fields that were rejected. Rejected fields
// never change state; other fields of the same request may still apply.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s=%s (%s)", f.Field, f.Value, f.Reason))
	}
	return "invalid durations: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, value, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Value: value, Reason: reason})
}

// orNil avoids returning a typed nil through the error interface.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// FieldErrors extracts the rejected fields from any number of errors
// produced by this package. Other errors are ignored.
func FieldErrors(errs ...error) []FieldError {
	var fields []FieldError
	for _, err := range errs {
		var verr *ValidationError
		if errors.As(err, &verr) {
			fields = append(fields, verr.Fields...)
		}
	}
	return fields
}

// IsValidation reports whether err carries rejected duration fields.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
