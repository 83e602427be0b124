package service

import "errors"

// Error kinds returned by the service. Callers match them with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrLocked       = errors.New("predictions are locked")
	ErrNotFound     = errors.New("not found")
	ErrUnknownMatch = errors.New("unknown match")
)
