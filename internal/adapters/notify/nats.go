package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const natsConnectTimeout = 10 * time.Second

// NATSBus publishes score changes on a NATS subject so several service
// instances share one notification stream.
type NATSBus struct {
	conn *nats.Conn
	cfg  settings

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// DialNATS connects to url and returns a bus that owns the connection.
func DialNATS(url string, opts ...Option) (*NATSBus, error) {
	conn, err := nats.Connect(url, nats.Name("arena"), nats.Timeout(natsConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNATSBus(conn, opts...), nil
}

// NewNATSBus wraps an existing connection. Close drains it.
func NewNATSBus(conn *nats.Conn, opts ...Option) *NATSBus {
	return &NATSBus{conn: conn, cfg: defaults(opts), done: make(chan struct{})}
}

// Publish sends change on the configured subject.
func (b *NATSBus) Publish(_ context.Context, change model.ScoreChanged) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	payload, err := encode(change)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.cfg.topic, payload); err != nil {
		return fmt.Errorf("publish score change: %w", err)
	}
	return nil
}

// Subscribe creates a channel subscription on the subject and flushes so the
// server knows about it before returning.
func (b *NATSBus) Subscribe(ctx context.Context) (<-chan model.ScoreChanged, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	raw := make(chan *nats.Msg, b.cfg.buffer)
	sub, err := b.conn.ChanSubscribe(b.cfg.topic, raw)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", b.cfg.topic, err)
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	out := make(chan model.ScoreChanged, b.cfg.buffer)
	go func() {
		defer close(out)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case msg := <-raw:
				change, err := decode(msg.Data)
				if err != nil {
					metrics.RecordNotificationDropped()
					b.cfg.logger.Warn(ctx, "dropping score change", logger.String("subject", msg.Subject), logger.Error(err))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				case <-b.done:
					return
				}
			}
		}
	}()
	return out, nil
}

// Close ends all subscriptions and drains the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
