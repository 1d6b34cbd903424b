package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

type liveKey struct {
	eventID string
	scope   model.Scope
}

// subscriber holds at most one undelivered leaderboard; a newer one replaces it.
type subscriber struct {
	mu        sync.Mutex
	ch        chan model.Leaderboard
	delivered bool
	closed    bool
}

func (sub *subscriber) offer(lb model.Leaderboard, initial bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed || (initial && sub.delivered) {
		return
	}
	sub.delivered = true
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- lb
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

type hub struct {
	mu   sync.RWMutex
	subs map[liveKey]map[*subscriber]struct{}
	n    int
}

func newHub() *hub {
	return &hub{subs: make(map[liveKey]map[*subscriber]struct{})}
}

func (h *hub) add(key liveKey) *subscriber {
	sub := &subscriber{ch: make(chan model.Leaderboard, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.n++
	metrics.UpdateLiveSubscribers(h.n)
	return sub
}

func (h *hub) remove(key liveKey, sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[key][sub]; ok {
		delete(h.subs[key], sub)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
		h.n--
		metrics.UpdateLiveSubscribers(h.n)
	}
	h.mu.Unlock()
	sub.close()
}

// scopes lists the scopes that currently have subscribers for eventID.
func (h *hub) scopes(eventID string) []model.Scope {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []model.Scope
	for _, scope := range []model.Scope{model.ScopeTeam, model.ScopeIndividual} {
		if len(h.subs[liveKey{eventID, scope}]) > 0 {
			out = append(out, scope)
		}
	}
	return out
}

func (h *hub) broadcast(key liveKey, lb model.Leaderboard) {
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[key]))
	for sub := range h.subs[key] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()
	for _, sub := range targets {
		sub.offer(lb, false)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[liveKey]map[*subscriber]struct{})
	h.n = 0
	h.mu.Unlock()
	metrics.UpdateLiveSubscribers(0)
	for _, set := range all {
		for sub := range set {
			sub.close()
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Watch yields the event's current leaderboard and then a freshly calculated
// one after each coalesced batch of score changes. A slow reader only ever
// sees the latest value. The channel closes when ctx is done or the service
// stops.
func (s *Service) Watch(ctx context.Context, eventID string, scope model.Scope) (<-chan model.Leaderboard, error) {
	if scope == "" {
		scope = model.ScopeTeam
	}
	if scope != model.ScopeTeam && scope != model.ScopeIndividual {
		return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, scope)
	}
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}

	key := liveKey{eventID: eventID, scope: scope}
	sub := s.hub.add(key)
	initial, err := s.calculator.Calculate(ctx, eventID, scope)
	if err != nil {
		s.hub.remove(key, sub)
		return nil, err
	}
	sub.offer(initial, true)

	go func() {
		<-ctx.Done()
		s.hub.remove(key, sub)
	}()
	return sub.ch, nil
}

// Recompute recalculates every watched leaderboard of eventID and pushes the
// results to its subscribers. Events nobody watches are skipped.
func (s *Service) Recompute(ctx context.Context, eventID string) error {
	for _, scope := range s.hub.scopes(eventID) {
		lb, err := s.calculator.Calculate(ctx, eventID, scope)
		if err != nil {
			return fmt.Errorf("recompute %s leaderboard: %w", scope, err)
		}
		s.hub.broadcast(liveKey{eventID: eventID, scope: scope}, lb)
		s.logger.Debug(ctx, "live leaderboard pushed",
			logger.String("event_id", eventID),
			logger.String("scope", string(scope)),
			logger.Int("entries", len(lb.Entries)),
		)
	}
	return nil
}

// WatchSubmission yields the submission's current aggregate and a new one
// each time the score store reports a change to it.
func (s *Service) WatchSubmission(ctx context.Context, submissionID string) (<-chan model.AggregatedScore, error) {
	initial, err := s.aggregator.Aggregate(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	changes, err := s.store.Scores().StreamBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("stream scores for %s: %w", submissionID, err)
	}

	out := make(chan model.AggregatedScore, 1)
	out <- initial
	go func() {
		defer close(out)
		for range changes {
			agg, err := s.aggregator.Aggregate(ctx, submissionID)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn(ctx, "live aggregate failed", logger.String("submission_id", submissionID), logger.Error(err))
				}
				return
			}
			select {
			case out <- agg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
