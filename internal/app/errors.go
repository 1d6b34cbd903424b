package service

import "errors"

var (
	ErrNotStarted   = errors.New("service not started")
	ErrInvalidScope = errors.New("invalid leaderboard scope")
)
