package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies pipeline failures so callers can tell bad user input
// from bad system configuration.
type ErrorKind string

const (
	// KindSchemaNotFound means no sheet layout is known for the requested
	// regulation/category/department-type combination.
	KindSchemaNotFound ErrorKind = "schema_not_found"
	// KindUnknownTemplate means the layout is known but no template file is
	// registered for the combination.
	KindUnknownTemplate ErrorKind = "unknown_template"
	// KindMissingInput means a required input kind had no file supplied.
	KindMissingInput ErrorKind = "missing_input"
	// KindMalformedMetadata is a structural parse failure in a sheet's
	// metadata or header block.
	KindMalformedMetadata ErrorKind = "malformed_metadata"
	// KindMalformedMarks is a non-numeric, non-blank cell in a marks column.
	KindMalformedMarks ErrorKind = "malformed_marks"
	// KindConsistencyMismatch means metadata differs across the sheet set.
	KindConsistencyMismatch ErrorKind = "consistency_mismatch"
	// KindPopulationMismatch means the sheets do not cover the same students
	// or required outcomes.
	KindPopulationMismatch ErrorKind = "population_mismatch"
	// KindConflictingOutcome means two sheets supplied the same outcome for
	// the same student.
	KindConflictingOutcome ErrorKind = "conflicting_outcome"
	// KindSchemaViolation means the schema points a writable field at a
	// formula cell. Never user-correctable by re-upload.
	KindSchemaViolation ErrorKind = "schema_violation"
)

// ConfigDefect reports whether the kind indicates a deployment or
// configuration problem rather than bad user data.
func (k ErrorKind) ConfigDefect() bool {
	switch k {
	case KindSchemaNotFound, KindUnknownTemplate, KindSchemaViolation:
		return true
	}
	return false
}

// Error is a classified pipeline failure. Details carry the full
// field-and-sheet-qualified list of problems; consistency and merge errors
// are batched so the user can fix everything in one re-upload cycle.
type Error struct {
	Kind    ErrorKind
	Message string
	Details []string
	wrapped error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return msg
}

func (e *Error) Unwrap() error { return e.wrapped }

// Errorf builds a classified error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: err.Error(), wrapped: errors.Unwrap(err)}
}

// BatchError builds a classified error carrying an exhaustive detail list.
func BatchError(kind ErrorKind, message string, details []string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// KindOf extracts the ErrorKind from err, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailsOf extracts the detail list from err, falling back to the error
// text for unclassified errors.
func DetailsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		if len(e.Details) > 0 {
			return e.Details
		}
		if e.Message != "" {
			return []string{e.Message}
		}
	}
	if err != nil {
		return []string{err.Error()}
	}
	return nil
}
