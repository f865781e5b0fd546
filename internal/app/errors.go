package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingUserID is returned by the admin guard before any lookup.
	ErrMissingUserID   = fmt.Errorf("%w: user ID required", ErrInvalidInput)
	ErrInvalidUserID   = fmt.Errorf("%w: invalid user ID", ErrInvalidInput)
	ErrInvalidDecision = fmt.Errorf("%w: status must be approved or rejected", ErrInvalidInput)
	ErrInvalidStatus   = fmt.Errorf("%w: status must be pending, approved or rejected", ErrInvalidInput)
	ErrInvalidSort     = fmt.Errorf("%w: unsupported sortBy", ErrInvalidInput)
	ErrInvalidDate     = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)

	ErrNotFound     = errors.New("not found")
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	ErrForbidden      = errors.New("access denied: not an admin")
	ErrAlreadyClaimed = errors.New("item already claimed")

	// ErrEmailExists is shown to users as-is.
	ErrEmailExists        = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrPersistence wraps store failures. Its details belong in logs only.
	ErrPersistence = errors.New("persistence error")
)

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// IsGuardFailure reports whether err was produced by RequireAdmin rejecting
// the caller rather than by the operation behind it.
func IsGuardFailure(err error) bool {
	return errors.Is(err, ErrMissingUserID) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrForbidden)
}
