package notify

import "github.com/okian/arena/pkg/logger"

// Option configures a bus implementation.
type Option func(*settings)

type settings struct {
	topic  string
	buffer int
	logger logger.Logger
}

func defaults(opts []Option) settings {
	s := settings{
		topic:  DefaultTopic,
		buffer: defaultBuffer,
		logger: logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithTopic overrides the topic or subject name.
func WithTopic(topic string) Option {
	return func(s *settings) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
