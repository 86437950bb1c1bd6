package arena

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
)

// ActiveRoom resolves the session's active room handle.
func (c *Coordinator) ActiveRoom(ctx context.Context) (*models.Room, error) {
	id, err := c.store.ActiveRoomID(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoActiveRoom
	} else if err != nil {
		return nil, err
	}
	return c.store.GetRoom(ctx, id)
}

// ParticipantInfo is a participant joined with its profile.
type ParticipantInfo struct {
	models.Participant
	Pseudo   string     `json:"pseudo"`
	AvatarID *uuid.UUID `json:"avatar_id,omitempty"`
}

func (c *Coordinator) Participants(ctx context.Context, roomID uuid.UUID) ([]ParticipantInfo, error) {
	ps, err := c.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]ParticipantInfo, 0, len(ps))
	for _, p := range ps {
		info := ParticipantInfo{Participant: p, Pseudo: models.DefaultPseudo}
		prof, err := c.store.GetProfile(ctx, p.PlayerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if prof != nil {
			info.Pseudo = prof.DisplayName()
			info.AvatarID = prof.AvatarID
		}
		out = append(out, info)
	}
	return out, nil
}

func (c *Coordinator) AvailableGifts(ctx context.Context) ([]models.Gift, error) {
	return c.store.ListAvailableGifts(ctx)
}

func (c *Coordinator) AvailableQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error) {
	return c.store.ListUnusedQuestions(ctx, roomID)
}

func (c *Coordinator) Answers(ctx context.Context, roundID uuid.UUID) ([]models.Answer, error) {
	return c.store.ListAnswers(ctx, roundID)
}

func (c *Coordinator) Avatars(ctx context.Context) ([]models.Avatar, error) {
	return c.store.ListAvatars(ctx)
}

func (c *Coordinator) Round(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	return c.store.GetRound(ctx, roundID)
}

// WinnerPseudo returns the display name of the round winner, or "" when the
// round is unresolved or had no winner.
func (c *Coordinator) WinnerPseudo(ctx context.Context, roundID uuid.UUID) (string, error) {
	r, err := c.store.GetRound(ctx, roundID)
	if err != nil {
		return "", err
	}
	if r.WinnerID == nil {
		return "", nil
	}
	return c.Pseudo(ctx, *r.WinnerID)
}

// Pseudo returns the display name for playerID, DefaultPseudo when no profile exists.
func (c *Coordinator) Pseudo(ctx context.Context, playerID uuid.UUID) (string, error) {
	prof, err := c.store.GetProfile(ctx, playerID)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultPseudo, nil
	} else if err != nil {
		return "", err
	}
	return prof.DisplayName(), nil
}

// Snapshot is everything a view needs to render one room, read at one instant.
type Snapshot struct {
	Room         models.Room       `json:"room"`
	Round        *models.Round     `json:"round,omitempty"`
	Question     *models.Question  `json:"-"`
	Gift         *models.Gift      `json:"gift,omitempty"`
	Participants []ParticipantInfo `json:"participants"`
	Answers      []models.Answer   `json:"-"`
	WinnerPseudo string            `json:"winner_pseudo,omitempty"`
	Now          time.Time         `json:"now"`
}

// Remaining is the time left on the current round, zero when none is running.
func (s *Snapshot) Remaining() time.Duration {
	if s.Round == nil || !s.Round.Active() {
		return 0
	}
	if d := s.Round.Remaining(s.Now); d > 0 {
		return d
	}
	return 0
}

// Answered reports whether playerID has an answer in the current round.
func (s *Snapshot) Answered(playerID uuid.UUID) bool {
	for _, a := range s.Answers {
		if a.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (s *Snapshot) Participant(playerID uuid.UUID) *ParticipantInfo {
	for i := range s.Participants {
		if s.Participants[i].PlayerID == playerID {
			return &s.Participants[i]
		}
	}
	return nil
}

// Snapshot reads the room with its current round, question, gift, answers
// and participants. Reads are not transactional; views re-derive on the next
// change event anyway.
func (c *Coordinator) Snapshot(ctx context.Context, roomID uuid.UUID) (*Snapshot, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{Room: *room, Now: c.clock.Now()}
	if s.Participants, err = c.Participants(ctx, roomID); err != nil {
		return nil, err
	}
	if room.CurrentRoundID == nil {
		return s, nil
	}

	if s.Round, err = c.store.GetRound(ctx, *room.CurrentRoundID); err != nil {
		return nil, err
	}
	if s.Question, err = c.store.GetQuestion(ctx, s.Round.QuestionID); err != nil {
		return nil, err
	}
	if s.Round.GiftID != nil {
		if s.Gift, err = c.store.GetGift(ctx, *s.Round.GiftID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if s.Answers, err = c.store.ListAnswers(ctx, s.Round.ID); err != nil {
		return nil, err
	}
	if s.Round.WinnerID != nil {
		if s.WinnerPseudo, err = c.Pseudo(ctx, *s.Round.WinnerID); err != nil {
			return nil, err
		}
	}
	return s, nil
}
