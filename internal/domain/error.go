package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Agent / pipeline
	ErrRunInProgress   = errors.New("agent run already in progress")
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrStatusChange    = errors.New("status change requires a log entry")

	// Browser session
	ErrFieldNotFound  = errors.New("form field not found")
	ErrBrowserTimeout = errors.New("browser operation timed out")
	ErrSessionClosed  = errors.New("browser session closed")
	ErrNavigation     = errors.New("navigation failed")

	// External analysis
	ErrMalformedReply = errors.New("malformed analysis reply")
)
