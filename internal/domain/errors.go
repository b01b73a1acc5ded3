package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no valid platform session accompanied the request
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredential covers unknown, used and foreign keys or tickets alike
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrExpired means a ticket was presented after its expiry
	ErrExpired = errors.New("credential expired")

	// ErrMissingField means a required request field was absent
	ErrMissingField = errors.New("missing required field")

	// ErrUpstream wraps document store and platform failures
	ErrUpstream = errors.New("upstream failure")

	// ErrUnknownPlan means a plan token is not one of the known plans
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrLockHeld means another exchange holds the ticket
	ErrLockHeld = errors.New("lock held")
)

// MissingFieldError names the absent field
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Is lets errors.Is match ErrMissingField
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// Upstream wraps err so that it matches ErrUpstream while keeping its detail
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}
