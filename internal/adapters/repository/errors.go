package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrInvalidOutcome = errors.New("invalid outcome key")
	ErrClosed         = errors.New("store closed")
	ErrMissingDSN     = errors.New("database url required")
)
