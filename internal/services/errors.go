package services

import "errors"

var (
	// ErrDuplicateEmail signals a signup against an already registered email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken signals a malformed, expired or mis-signed token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden signals an authenticated caller who does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound signals a missing book or user.
	ErrNotFound = errors.New("not found")
	// ErrInvalidGrade signals a grade outside the [0, 5] range.
	ErrInvalidGrade = errors.New("grade must be between 0 and 5")
	// ErrDuplicateRating signals a second rating from the same user on one book.
	ErrDuplicateRating = errors.New("user has already rated this book")
)
