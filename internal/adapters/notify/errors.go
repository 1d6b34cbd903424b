package notify

import "errors"

var (
	ErrClosed = errors.New("notification bus closed")
	ErrDecode = errors.New("malformed score change payload")
)
