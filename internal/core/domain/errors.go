package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrConcurrentUpdate  = errors.New("concurrent update detected")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalState     = errors.New("deal is in a terminal state")
)

// Invitation errors
var (
	ErrInvitationExpired = errors.New("invitation expired")
	ErrAlreadyResponded  = errors.New("invitation already responded")
	ErrNotInviter        = errors.New("only the inviter may cancel an invitation")
)

// Signing errors
var (
	ErrConsentRequired    = errors.New("both personal data and simple electronic signature consents are required")
	ErrAlreadySigned      = errors.New("document already signed")
	ErrInvalidCode        = errors.New("invalid confirmation code")
	ErrCodeExpired        = errors.New("confirmation code expired")
	ErrAlreadyUsed        = errors.New("confirmation code already used")
	ErrOTPNotRequested    = errors.New("confirmation code was not requested")
	ErrTooManyAttempts    = errors.New("too many invalid confirmation attempts")
	ErrDisputeNotAllowed  = errors.New("dispute cannot be opened for this document")
	ErrCooldownActive     = errors.New("confirmation code was sent recently, try again later")
	ErrContractNotSigning = errors.New("contract is not accepting signatures")
)

// ValidationError reports malformed or incomplete input to a pure calculation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError is returned when the target status is not reachable
// from the current one.
type InvalidTransitionError struct {
	From DealStatus
	To   DealStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// TerminalStateError is returned for any transition attempted out of a terminal status.
type TerminalStateError struct {
	Status DealStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("deal is in terminal status %s", e.Status)
}

func (e *TerminalStateError) Unwrap() error { return ErrTerminalState }
