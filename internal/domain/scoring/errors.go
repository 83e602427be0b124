package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidRubric = errors.New("invalid scoring rubric")
)
