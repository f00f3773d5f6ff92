package presets

import (
	"errors"
	"fmt"
)

// Error represents a preset store failure.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeNotFound            = "PRESET_NOT_FOUND"
	ErrCodeLastPresetProtected = "LAST_PRESET_PROTECTED"
	ErrCodeInvalid             = "INVALID_PRESET"
	ErrCodePersistence         = "PERSISTENCE_ERROR"
)

// NewError creates a new preset error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func hasCode(err error, code string) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Code == code
}

// IsNotFound reports whether err means the named preset does not exist.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsLastPresetProtected reports whether err rejected deleting the only preset.
func IsLastPresetProtected(err error) bool { return hasCode(err, ErrCodeLastPresetProtected) }

// IsInvalid reports whether err rejected a name or duration set.
func IsInvalid(err error) bool { return hasCode(err, ErrCodeInvalid) }

// IsPersistence reports whether err came from writing the store file.
func IsPersistence(err error) bool { return hasCode(err, ErrCodePersistence) }
