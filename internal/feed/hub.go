// internal/feed/hub.go
package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 16

// Hub fans events out to in-process subscribers keyed by room id. Sends are
// non-blocking: a subscriber with a full buffer already has a pending "re-derive"
// hint, so dropping the extra event loses nothing.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[*Subscription]struct{}
	all    map[*Subscription]struct{}
	buffer int
	logger *logrus.Logger
}

// Subscription is one observer's event stream.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	roomID uuid.UUID
	hub    *Hub
	once   sync.Once
}

func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Subscription]struct{}),
		all:    make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		logger: logger,
	}
}

// Subscribe returns a subscription for roomID. uuid.Nil subscribes to every
// room. Broadcast events reach all subscriptions.
func (h *Hub) Subscribe(roomID uuid.UUID) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, roomID: roomID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if roomID == uuid.Nil {
		h.all[sub] = struct{}{}
		return sub
	}
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.rooms[roomID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if s.roomID == uuid.Nil {
			delete(h.all, s)
		} else if set, ok := h.rooms[s.roomID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.rooms, s.roomID)
			}
		}
		h.mu.Unlock()
		close(s.ch)
	})
}

func (s *Subscription) RoomID() uuid.UUID { return s.roomID }

// Publish delivers ev to matching subscribers. It never blocks and never fails.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.all {
		h.deliver(sub, ev)
	}
	if ev.Broadcast() {
		for _, set := range h.rooms {
			for sub := range set {
				h.deliver(sub, ev)
			}
		}
		return nil
	}
	for sub := range h.rooms[ev.RoomID] {
		h.deliver(sub, ev)
	}
	return nil
}

func (h *Hub) deliver(sub *Subscription, ev Event) {
	select {
	case sub.ch <- ev:
	default:
		h.logger.WithFields(logrus.Fields{
			"table":  ev.Table,
			"roomID": ev.RoomID,
		}).Debug("feed subscriber buffer full, event coalesced")
	}
}

// Subscribers returns the number of live subscriptions, for tests and health output.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := len(h.all)
	for _, set := range h.rooms {
		n += len(set)
	}
	return n
}
