package repositories

import "errors"

var (
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail signals a violation of the user email uniqueness constraint.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrVersionConflict signals that a conditional write lost against a
	// concurrent writer and should be retried from a fresh read.
	ErrVersionConflict = errors.New("version conflict")
)
