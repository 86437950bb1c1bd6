// internal/models/action.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionRecord is one accepted arena command, queued in Redis and persisted
// to arena_actions by the historian.
type ActionRecord struct {
	Kind     string                 `json:"kind"`
	RoomID   uuid.UUID              `json:"room_id"`
	RoundID  *uuid.UUID             `json:"round_id,omitempty"`
	PlayerID *uuid.UUID             `json:"player_id,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	At       time.Time              `json:"at"`
}

const (
	ActionRoomCreated   = "room_created"
	ActionPlayerJoined  = "player_joined"
	ActionRoundStarted  = "round_started"
	ActionAnswer        = "answer_submitted"
	ActionRoundResolved = "round_resolved"
	ActionDirectAward   = "direct_award"
	ActionRoomAdvanced  = "room_advanced"
	ActionAvatarClaimed = "avatar_claimed"
)
