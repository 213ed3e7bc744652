package store

import (
	"errors"
	"fmt"
)

// NotFoundError is returned by Update and Delete when no record with the
// requested id exists. It is never retried; callers surface it.
type NotFoundError struct {
	Entity string
	ID     int64
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Entity, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ReorderErrorCode categorizes reorder validation failures.
type ReorderErrorCode string

const (
	// ReorderDuplicateID indicates the id sequence contains an id twice.
	ReorderDuplicateID ReorderErrorCode = "DUPLICATE_ID"

	// ReorderUnknownID indicates an id in the sequence does not exist.
	ReorderUnknownID ReorderErrorCode = "UNKNOWN_ID"

	// ReorderScopeMismatch indicates the ids span more than one parent
	// scope.
	ReorderScopeMismatch ReorderErrorCode = "SCOPE_MISMATCH"
)

// ReorderError is returned by Reorder when the id sequence fails
// validation. The sequence is not required to cover every member of the
// scope (the reconciler reorders surviving records only), but it must
// name real, distinct records from a single parent scope.
type ReorderError struct {
	Code   ReorderErrorCode
	Entity string
	ID     int64
}

// Error implements the error interface.
func (e *ReorderError) Error() string {
	return fmt.Sprintf("%s: reorder of %s rejected (id=%d)", e.Code, e.Entity, e.ID)
}

// IsReorderError unwraps err to a ReorderError when it is one.
func IsReorderError(err error) (*ReorderError, bool) {
	var re *ReorderError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
