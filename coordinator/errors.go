package coordinator

import "errors"

var (
	ErrAlreadyKnown       = errors.New("participant already registered")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrUnknownState       = errors.New("unknown coordinator state")
	ErrInvalidConfig      = errors.New("invalid coordinator configuration")
)
