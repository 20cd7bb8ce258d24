package schedule

import (
	"errors"
	"strings"
)

// ErrSchedulingOverflow marks a rule with no send instant left inside the
// scheduling horizon. Activation and resume wrap it in the ValidationError
// they return; the scheduler treats it as normal completion.
var ErrSchedulingOverflow = errors.New("next send date exceeds scheduling horizon")

// Validation error codes.
const (
	CodeRequired   = "REQUIRED"
	CodeInvalid    = "INVALID_VALUE"
	CodeOutOfRange = "OUT_OF_RANGE"
	CodeConflict   = "CONFLICT"
	CodeForbidden  = "NOT_ALLOWED"
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError collects every violation found in one pass.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
	Cause  error        `json:"-"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the sentinel behind the violations, if any.
func (e *ValidationError) Unwrap() error { return e.Cause }

// Add records a violation.
func (e *ValidationError) Add(field, code, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message, Code: code})
}

// Has reports whether field has at least one violation.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Merge appends the violations of other, if it is a *ValidationError.
func (e *ValidationError) Merge(other error) {
	var ve *ValidationError
	if errors.As(other, &ve) {
		e.Errors = append(e.Errors, ve.Errors...)
	}
}

// OrNil returns nil when nothing was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
