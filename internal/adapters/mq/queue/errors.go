package queue

import "errors"

// ErrFull is reported by callers that translate a rejected Enqueue into an error.
var ErrFull = errors.New("recompute queue full")
