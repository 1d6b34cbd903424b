package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidScore  = errors.New("invalid score")
	ErrInvalidRubric = errors.New("invalid rubric")
)
