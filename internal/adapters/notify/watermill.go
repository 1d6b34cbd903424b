package notify

import (
	"context"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// ChannelBus is an in-process Bus backed by watermill's gochannel pub/sub.
type ChannelBus struct {
	pubsub *gochannel.GoChannel
	cfg    settings

	mu     sync.RWMutex
	closed bool
}

// NewChannelBus creates an in-process bus.
func NewChannelBus(opts ...Option) *ChannelBus {
	cfg := defaults(opts)
	ps := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.buffer)},
		loggerAdapter{l: cfg.logger},
	)
	return &ChannelBus{pubsub: ps, cfg: cfg}
}

// Publish sends change to every current subscriber.
func (b *ChannelBus) Publish(ctx context.Context, change model.ScoreChanged) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	payload, err := encode(change)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_id", change.EventID)
	return b.pubsub.Publish(b.cfg.topic, msg)
}

// Subscribe registers a subscriber. Messages that fail to decode are acked
// and dropped.
func (b *ChannelBus) Subscribe(ctx context.Context) (<-chan model.ScoreChanged, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	messages, err := b.pubsub.Subscribe(ctx, b.cfg.topic)
	if err != nil {
		return nil, err
	}

	out := make(chan model.ScoreChanged, b.cfg.buffer)
	go func() {
		defer close(out)
		for msg := range messages {
			change, err := decode(msg.Payload)
			msg.Ack()
			if err != nil {
				metrics.RecordNotificationDropped()
				b.cfg.logger.Warn(ctx, "dropping score change", logger.String("message_id", msg.UUID), logger.Error(err))
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops the pub/sub and closes all subscriber channels.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// loggerAdapter routes watermill's internal logging to the service logger.
type loggerAdapter struct {
	l      logger.Logger
	fields watermill.LogFields
}

func (a loggerAdapter) convert(fields watermill.LogFields) []logger.Field {
	merged := a.fields.Add(fields)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]logger.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, logger.Any(k, merged[k]))
	}
	return out
}

func (a loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(context.Background(), msg, append(a.convert(fields), logger.Error(err))...)
}

func (a loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Debug(context.Background(), msg, a.convert(fields)...)
}

func (a loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug(context.Background(), msg, a.convert(fields)...)
}

func (a loggerAdapter) Trace(string, watermill.LogFields) {}

func (a loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return loggerAdapter{l: a.l, fields: a.fields.Add(fields)}
}
