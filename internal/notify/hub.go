// Package notify broadcasts poll updates to connected subscribers.
//
// Delivery is best effort. Publish never blocks: an event that does not fit
// into a subscriber's buffer is dropped for that subscriber only. Events
// published one after another reach each subscriber in the same order.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"polling-engine/internal/domain/poll"
	"polling-engine/internal/metrics"
)

const (
	KindStatus = "status"
	KindVotes  = "votes"
)

type Event struct {
	Kind        string      `json:"kind"`
	PollID      string      `json:"poll_id"`
	Status      poll.Status `json:"status"`
	TotalVoters int64       `json:"total_voters"`
	Winners     []string    `json:"winners,omitempty"`
	At          time.Time   `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout publishes to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

type Subscription struct {
	C      <-chan Event
	ch     chan Event
	pollID string
	hub    *Hub
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a subscriber. An empty pollID receives every event.
func (h *Hub) Subscribe(pollID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch, pollID: pollID, hub: h}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

func (h *Hub) Publish(ctx context.Context, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if sub.pollID != "" && sub.pollID != ev.PollID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
			metrics.IncNotifyDropped()
			h.logger.Warn("dropping poll event for slow subscriber",
				"event", "notify_drop",
				"module", "notify",
				"layer", "platform",
				"poll_id", ev.PollID,
				"kind", ev.Kind,
			)
		}
	}
}

// Subscribers returns the number of attached subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close detaches every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
