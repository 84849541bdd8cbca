// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package record

import "fmt"

// ShapeError reports a declared field whose value cannot be coerced to the
// field's declared kind. Missing and unknown fields never cause one.
type ShapeError struct {
	// Record is the schema name of the record being populated.
	Record string

	// Field is the declared field name.
	Field string

	// Expected is the declared kind.
	Expected Kind

	// Actual describes the type of the supplied value (e.g. "string").
	Actual string

	// Err is the underlying coercion failure.
	Err error
}

func (e *ShapeError) Error() string {
	msg := fmt.Sprintf("%s.%s: expected %s, got %s", e.Record, e.Field, e.Expected, e.Actual)
	if e.Err != nil && e.Err != errMismatch {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *ShapeError) Unwrap() error { return e.Err }
