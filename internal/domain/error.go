package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrJobNotFound        = errors.New("job not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidPayload     = errors.New("invalid job payload")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrUnknownJobKind     = errors.New("unknown job kind")
	ErrTransport          = errors.New("transport failure")

	// ErrJobNotCompleted is a sentinel for callers asking for the result of a
	// job that is still in flight. It is a normal outcome, not a failure.
	ErrJobNotCompleted = errors.New("job not completed")

	// Infra-level errors surfaced by repositories
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
