// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle state of a Room: lobby -> playing -> results -> lobby.
type RoomStatus string

const (
	RoomLobby   RoomStatus = "lobby"
	RoomPlaying RoomStatus = "playing"
	RoomResults RoomStatus = "results"
)

// Room represents a row in the game_rooms table.
type Room struct {
	ID             uuid.UUID  `json:"id"`
	Status         RoomStatus `json:"status"`
	CurrentRoundID *uuid.UUID `json:"current_round_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Participant is a player's membership in a Room.
type Participant struct {
	RoomID     uuid.UUID `json:"room_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	HasWonGift bool      `json:"has_won_gift"`
	JoinedAt   time.Time `json:"joined_at"`
}
