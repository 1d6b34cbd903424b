package model

import "errors"

// ErrNotFound is wrapped by stores when a referenced record does not exist.
var ErrNotFound = errors.New("not found")
