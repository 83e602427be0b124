package standings

import "errors"

// Sentinel kinds for engine errors.
var (
	// ErrDataAccess wraps any failure reported by the DataSource.
	ErrDataAccess = errors.New("data access failed")
)
