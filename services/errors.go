package services

import (
	"errors"
	"fmt"
)

// ConflictCode identifies the business rule a rejected operation hit
type ConflictCode string

const (
	ConflictDuplicateName       ConflictCode = "duplicate_name"
	ConflictDuplicateUsername   ConflictCode = "duplicate_username"
	ConflictDuplicateEmail      ConflictCode = "duplicate_email"
	ConflictNotMember           ConflictCode = "not_a_member"
	ConflictAlreadyInTeam       ConflictCode = "already_in_team"
	ConflictInvalidCode         ConflictCode = "invalid_code"
	ConflictAlreadyMember       ConflictCode = "already_member"
	ConflictTeamFull            ConflictCode = "team_full"
	ConflictTeamNotFound        ConflictCode = "team_not_found"
	ConflictSizeBelowMembership ConflictCode = "size_below_membership"
	ConflictRoundClosed         ConflictCode = "round_closed"
)

// ConflictError is a structured failure detected by a read-then-check.
// It is returned, never panicked, and carries a message suitable for
// display next to the triggering control.
type ConflictError struct {
	Code    ConflictCode
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflict builds a ConflictError
func NewConflict(code ConflictCode, format string, args ...interface{}) *ConflictError {
	return &ConflictError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsConflict reports whether err is a ConflictError with the given code
func IsConflict(err error, code ConflictCode) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Code == code
}

// ValidationError rejects malformed input before any remote call
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidation builds a ValidationError
func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrBackendUnavailable marks a store that could not be reached. The
// underlying cause is wrapped for logs; callers show a generic message.
var ErrBackendUnavailable = errors.New("backend unavailable")

func backendError(err error) error {
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
