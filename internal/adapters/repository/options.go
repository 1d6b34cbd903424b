package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithStreamBuffer sets the per-subscriber buffer of StreamBySubmissionID.
func WithStreamBuffer(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.streamBuffer = n
		}
	}
}

// WithClock overrides the time source used for rubric clones.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
