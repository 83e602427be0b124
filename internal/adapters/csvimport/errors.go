package csvimport

import "errors"

// Sentinel kinds for import errors.
var (
	ErrMissingColumns = errors.New("csv missing columns")
	ErrInvalidRow     = errors.New("invalid csv row")
	ErrEmpty          = errors.New("csv has no header")
)
