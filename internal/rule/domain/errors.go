package domain

import "errors"

var (
	ErrInvalidFamily   = errors.New("invalid_family")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
	ErrVersionConflict = errors.New("version_conflict")
)

// FieldError is a single human-readable validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors collects every invalid field of a command. It is returned
// before any store access and never causes side effects.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (v *ValidationErrors) Error() string { return "validation error" }

func (v *ValidationErrors) Add(field, code, message string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Code: code, Message: message})
}

// ConflictError reports active rules whose scope and effective window overlap
// the candidate's. Recoverable and user-facing; the conflicting rules are
// attached so callers can link to them.
type ConflictError struct {
	Conflicts []Rule
}

func (e *ConflictError) Error() string { return "conflicting_rules" }
