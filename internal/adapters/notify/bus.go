// Package notify carries score-change notifications between the write path
// and the live leaderboard recompute workers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/arena/internal/domain/model"
)

// DefaultTopic is the topic (or NATS subject) score changes are published on.
const DefaultTopic = "arena.scores.changed"

const defaultBuffer = 256

// Bus publishes score changes and fans them out to subscribers.
type Bus interface {
	Publish(ctx context.Context, change model.ScoreChanged) error
	// Subscribe returns a channel of changes that is closed when ctx is done
	// or the bus is closed.
	Subscribe(ctx context.Context) (<-chan model.ScoreChanged, error)
	Close() error
}

func encode(change model.ScoreChanged) ([]byte, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("encode score change: %w", err)
	}
	return data, nil
}

func decode(data []byte) (model.ScoreChanged, error) {
	var change model.ScoreChanged
	if err := json.Unmarshal(data, &change); err != nil {
		return model.ScoreChanged{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if change.SubmissionID == "" && change.EventID == "" {
		return model.ScoreChanged{}, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	return change, nil
}
