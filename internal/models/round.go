// internal/models/round.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type RoundStatus string

const (
	RoundActive   RoundStatus = "active"
	RoundFinished RoundStatus = "finished"
)

// Round is one timed question episode within a Room. TimeLimitSec is copied
// from the Question when the round opens so later question edits cannot move
// the deadline of a running round.
type Round struct {
	ID           uuid.UUID   `json:"id"`
	RoomID       uuid.UUID   `json:"room_id"`
	QuestionID   uuid.UUID   `json:"question_id"`
	GiftID       *uuid.UUID  `json:"gift_id,omitempty"`
	Status       RoundStatus `json:"status"`
	WinnerID     *uuid.UUID  `json:"winner_id,omitempty"`
	TimeLimitSec int         `json:"time_limit"`
	StartedAt    time.Time   `json:"started_at"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`
}

func (r *Round) Active() bool {
	return r.Status == RoundActive
}

// Deadline is the instant at which the round's timer elapses.
func (r *Round) Deadline() time.Time {
	return r.StartedAt.Add(time.Duration(r.TimeLimitSec) * time.Second)
}

// Remaining returns time_limit - (now - started_at). The result is negative
// once the timer has elapsed.
func (r *Round) Remaining(now time.Time) time.Duration {
	return r.Deadline().Sub(now)
}

// Answer is one player's submission to one Round.
type Answer struct {
	ID          uuid.UUID `json:"id"`
	RoundID     uuid.UUID `json:"round_id"`
	PlayerID    uuid.UUID `json:"player_id"`
	OptionIndex int       `json:"option_index"`
	AnsweredAt  time.Time `json:"answered_at"`
}
