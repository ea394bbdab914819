package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyKey        = errors.New("empty key")
	ErrMalformedEntity = errors.New("malformed entity")
	ErrTooLarge        = errors.New("entity too large")

	// ErrPermissionDenied is returned to participants that have not completed rendezvous.
	ErrPermissionDenied = errors.New("participant has not completed rendezvous")
	// ErrFailedPrecondition is returned when the coordinator is not in the state an operation requires.
	ErrFailedPrecondition = errors.New("coordinator is not in the required state")
	// ErrAlreadyExists is returned on a duplicate update within one round.
	ErrAlreadyExists = errors.New("update already submitted for this round")
	// ErrStorage wraps every failure coming from weight storage.
	ErrStorage = errors.New("weight storage error")
)
