package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrInvalidQuery = errors.New("invalid leaderboard query")
)
