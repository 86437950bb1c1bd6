// internal/views/projections.go
package views

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/models"
)

// Role selects which projection an observer renders.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
	RoleScreen Role = "screen"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RolePlayer, RoleScreen:
		return r, true
	}
	return "", false
}

// Phase is what a player or the screen should be showing.
type Phase string

const (
	PhaseNoRoom   Phase = "no_room"
	PhaseJoin     Phase = "join"
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseAnswered Phase = "answered"
	PhaseResults  Phase = "results"
)

// AdminView drives the admin console.
type AdminView struct {
	Type               string                  `json:"type"`
	Room               *models.Room            `json:"room"`
	Round              *models.Round           `json:"round,omitempty"`
	Question           *models.Question        `json:"question,omitempty"`
	Participants       []arena.ParticipantInfo `json:"participants"`
	AvailableGifts     []models.Gift           `json:"available_gifts"`
	AvailableQuestions []models.Question       `json:"available_questions"`
	AnswerCount        int                     `json:"answer_count"`
	RemainingSec       int                     `json:"remaining_sec"`
	WinnerPseudo       string                  `json:"winner_pseudo,omitempty"`
	Actions            AdminActions            `json:"actions"`
}

// AdminActions tells the console which commands are currently valid. The
// coordinator re-checks everything at commit time.
type AdminActions struct {
	CanStart    bool `json:"can_start"`
	CanEnd      bool `json:"can_end"`
	CanAdvance  bool `json:"can_advance"`
	DirectAward bool `json:"direct_award"`
}

// PlayerView is one player's screen. It never carries the correct answer.
type PlayerView struct {
	Type         string                 `json:"type"`
	Phase        Phase                  `json:"phase"`
	RoomID       uuid.UUID              `json:"room_id,omitempty"`
	RoundID      *uuid.UUID             `json:"round_id,omitempty"`
	Pseudo       string                 `json:"pseudo,omitempty"`
	Joined       bool                   `json:"joined"`
	HasWonGift   bool                   `json:"has_won_gift"`
	Question     *models.PublicQuestion `json:"question,omitempty"`
	RemainingSec int                    `json:"remaining_sec"`
	HasAnswered  bool                   `json:"has_answered"`
	IsWinner     bool                   `json:"is_winner"`
	WinnerPseudo string                 `json:"winner_pseudo,omitempty"`
}

// ScreenView is the shared big-screen display.
type ScreenView struct {
	Type         string                  `json:"type"`
	Phase        Phase                   `json:"phase"`
	RoomID       uuid.UUID               `json:"room_id,omitempty"`
	Participants []arena.ParticipantInfo `json:"participants"`
	Question     *models.PublicQuestion  `json:"question,omitempty"`
	GiftTitle    string                  `json:"gift_title,omitempty"`
	RemainingSec int                     `json:"remaining_sec"`
	AnswerCount  int                     `json:"answer_count"`
	WinnerPseudo string                  `json:"winner_pseudo,omitempty"`
}

// seconds rounds up so a countdown shows 1 until the deadline passes.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// ProjectAdmin renders the admin console. gifts and questions are the
// currently available sets; a nil snapshot means no room exists yet.
func ProjectAdmin(s *arena.Snapshot, gifts []models.Gift, questions []models.Question) AdminView {
	v := AdminView{
		Type:               "admin_view",
		Participants:       []arena.ParticipantInfo{},
		AvailableGifts:     gifts,
		AvailableQuestions: questions,
	}
	if s == nil {
		return v
	}
	v.Participants = s.Participants
	room := s.Room
	v.Room = &room

	remaining := 0
	for _, p := range s.Participants {
		if !p.HasWonGift {
			remaining++
		}
	}

	switch room.Status {
	case models.RoomLobby:
		v.Actions.DirectAward = remaining == 1 && len(gifts) == 1
		v.Actions.CanStart = v.Actions.DirectAward || (remaining > 0 && len(gifts) > 0 && len(questions) > 0)
	case models.RoomPlaying:
		v.Actions.CanEnd = s.Round != nil && s.Round.Active()
	case models.RoomResults:
		v.Actions.CanAdvance = true
	}

	if s.Round != nil {
		v.Round = s.Round
		v.Question = s.Question
		v.AnswerCount = len(s.Answers)
		v.RemainingSec = seconds(s.Remaining())
		v.WinnerPseudo = s.WinnerPseudo
	}
	return v
}

// ProjectPlayer renders playerID's view. A nil snapshot means no room exists.
func ProjectPlayer(s *arena.Snapshot, playerID uuid.UUID, pseudo string) PlayerView {
	v := PlayerView{Type: "player_view", Phase: PhaseNoRoom, Pseudo: pseudo}
	if s == nil {
		return v
	}
	v.RoomID = s.Room.ID

	me := s.Participant(playerID)
	if me == nil {
		v.Phase = PhaseJoin
		return v
	}
	v.Joined = true
	v.HasWonGift = me.HasWonGift

	if s.Round != nil {
		id := s.Round.ID
		v.RoundID = &id
		v.HasAnswered = s.Answered(playerID)
		v.IsWinner = s.Round.WinnerID != nil && *s.Round.WinnerID == playerID
		v.WinnerPseudo = s.WinnerPseudo
	}

	switch s.Room.Status {
	case models.RoomLobby:
		v.Phase = PhaseLobby
	case models.RoomPlaying:
		switch {
		case s.Round == nil || s.Question == nil:
			v.Phase = PhaseLobby
		case v.HasAnswered:
			v.Phase = PhaseAnswered
		default:
			v.Phase = PhaseQuestion
			v.Question = s.Question.Public()
			v.RemainingSec = seconds(s.Remaining())
		}
	case models.RoomResults:
		v.Phase = PhaseResults
	}
	return v
}

// ProjectScreen renders the big screen. A nil snapshot means no room exists.
func ProjectScreen(s *arena.Snapshot) ScreenView {
	v := ScreenView{Type: "screen_view", Phase: PhaseNoRoom, Participants: []arena.ParticipantInfo{}}
	if s == nil {
		return v
	}
	v.RoomID = s.Room.ID
	v.Participants = s.Participants

	switch s.Room.Status {
	case models.RoomLobby:
		v.Phase = PhaseLobby
	case models.RoomPlaying:
		v.Phase = PhaseQuestion
	case models.RoomResults:
		v.Phase = PhaseResults
	}
	if s.Round == nil {
		return v
	}
	v.AnswerCount = len(s.Answers)
	if s.Gift != nil {
		v.GiftTitle = s.Gift.Title
	}
	if s.Room.Status == models.RoomPlaying && s.Question != nil {
		v.Question = s.Question.Public()
		v.RemainingSec = seconds(s.Remaining())
	}
	if s.Room.Status == models.RoomResults {
		v.WinnerPseudo = s.WinnerPseudo
	}
	return v
}
