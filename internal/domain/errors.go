package domain

import "errors"

var (
	// ErrSourceUnavailable is returned when a question bank source cannot be read.
	ErrSourceUnavailable = errors.New("question source unavailable")
	// ErrMalformedBank indicates a bank record lacks a prompt, choices or a valid answer set.
	ErrMalformedBank = errors.New("malformed question bank")
	// ErrBankNotFound is returned for bank ids that are not configured.
	ErrBankNotFound = errors.New("bank not found")
	// ErrInsufficientBankSize is returned when an attempt asks for more questions than the bank holds.
	ErrInsufficientBankSize = errors.New("bank has fewer questions than requested")
	// ErrAttemptTerminal is returned when an ended attempt is read or advanced.
	ErrAttemptTerminal = errors.New("attempt already ended")
	// ErrNoActiveAttempt is returned when a user acts before starting an attempt.
	ErrNoActiveAttempt = errors.New("no active attempt")
	// ErrModeMismatch is returned when an operation does not apply to the attempt's mode.
	ErrModeMismatch = errors.New("operation not supported in this attempt mode")
	// ErrQuestionOutOfRange is returned when navigating outside the attempt's questions.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrQuestionNotFound indicates an attempt references a question missing from its bank.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrPersistenceUnavailable wraps transport or storage failures of result stores.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrPersistenceConflict wraps concurrent-update conflicts reported by result stores.
	ErrPersistenceConflict = errors.New("persistence conflict")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)
