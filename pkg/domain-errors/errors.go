// Package dErrors provides coded domain errors. Services translate
// infrastructure facts (pkg/platform/sentinel) into these so callers can
// branch on a stable code instead of string matching.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and caller branching.
type Code string

const (
	// CodeBadRequest marks malformed input the caller can correct,
	// e.g. a license key with the wrong length after normalization.
	CodeBadRequest Code = "bad_request"

	// CodeValidation marks a field-level validation failure. The error
	// carries the field error set; see Fields.
	CodeValidation Code = "validation"

	// CodeNotFound marks a lookup miss (no active or migratable record).
	CodeNotFound Code = "not_found"

	// CodeConflict marks a precondition lost to another writer, such as a
	// claim on a license that already has an owner.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation marks an entity-level invariant breach caught
	// by a model constructor or transition check.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks failures the caller cannot recover from:
	// unresolvable edition handles, writes that validated but did not
	// persist, storage-layer bugs.
	CodeInternal Code = "internal"

	// CodeTimeout marks an aborted operation (context cancellation or
	// transaction deadline).
	CodeTimeout Code = "timeout"
)

// FieldError describes a single rejected field from a validation pass.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// Error is the concrete coded error. Use New / Wrap to construct.
type Error struct {
	code    Code
	msg     string
	fields  []FieldError
	wrapped error
}

func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// NewValidation builds a CodeValidation error carrying the rejected fields.
func NewValidation(msg string, fields []FieldError) *Error {
	return &Error{code: CodeValidation, msg: msg, fields: fields}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, wrapped: err}
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.wrapped)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.wrapped }

func (e *Error) Code() Code { return e.code }

// Fields returns the field error set of a validation error, nil otherwise.
func (e *Error) Fields() []FieldError { return e.fields }

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.code == code {
			return true
		}
		err = de.wrapped
		if err == nil {
			return false
		}
	}
	return false
}

// Is aliases HasCode for call sites that read better as a predicate.
func Is(err error, code Code) bool { return HasCode(err, code) }

// FieldsOf extracts the field error set from anywhere in the chain.
// Returns nil when the chain carries no validation error.
func FieldsOf(err error) []FieldError {
	var de *Error
	for errors.As(err, &de) {
		if len(de.fields) > 0 {
			return de.fields
		}
		err = de.wrapped
		if err == nil {
			return nil
		}
	}
	return nil
}
