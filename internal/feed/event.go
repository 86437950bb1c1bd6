// internal/feed/event.go
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table names carried by change events.
const (
	TableSession      = "arena_session"
	TableRooms        = "game_rooms"
	TableRounds       = "game_rounds"
	TableParticipants = "game_participants"
	TableAnswers      = "game_answers"
	TableGifts        = "gifts"
	TableAvatars      = "avatars"
)

const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
)

// Event is a change hint: "something in Table changed". Subscribers re-read
// the store rather than trusting the event body. RoomID is uuid.Nil for
// events that concern every room, such as a new active room.
type Event struct {
	Table  string    `json:"table"`
	Op     string    `json:"op"`
	RowID  uuid.UUID `json:"row_id"`
	RoomID uuid.UUID `json:"room_id"`
	At     time.Time `json:"at"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s (room %s)", e.Op, e.Table, e.RowID, e.RoomID)
}

// Broadcast reports whether every subscriber should see the event.
func (e Event) Broadcast() bool {
	return e.RoomID == uuid.Nil
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("decode feed event: %w", err)
	}
	return e, nil
}

// Publisher accepts change events. Publish must not block on slow subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Relay carries events between instances through an external bus. Publish
// sends to the bus; Run delivers everything received from the bus into sink
// until ctx is done.
type Relay interface {
	Publisher
	Run(ctx context.Context, sink Publisher) error
	Close() error
}

// Multi publishes to each publisher in order and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
