package rxsched

import "errors"

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrAlreadyEnded   = errors.New("already ended")
	ErrQueueFull      = errors.New("queue full")
	ErrInvalidArg     = errors.New("invalid argument")
)
