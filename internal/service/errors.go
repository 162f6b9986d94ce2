package service

import "errors"

// Sentinel errors returned by the services and mapped to API error codes in
// the handlers.
var (
	// ErrInvalidState marks a write attempted outside IN_PROGRESS.
	ErrInvalidState = errors.New("enrollment is not in progress")
	// ErrNotFound marks an unknown enrollment, question or answer id.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden marks access to an enrollment owned by another student.
	ErrForbidden = errors.New("enrollment belongs to another student")
	// ErrExamNotAvailable marks a start attempt outside the exam's window.
	ErrExamNotAvailable = errors.New("exam is not available")
	// ErrValidation marks a malformed answer payload.
	ErrValidation = errors.New("invalid answer payload")
	// ErrConfirmRequired marks a destructive regrade of a manual
	// correction attempted without explicit confirmation.
	ErrConfirmRequired = errors.New("overwriting a manual correction requires confirmation")
)
