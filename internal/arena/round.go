package arena

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
)

// Outcome is the decided result of a round.
type Outcome struct {
	RoundID uuid.UUID  `json:"round_id"`
	RoomID  uuid.UUID  `json:"room_id"`
	GiftID  *uuid.UUID `json:"gift_id,omitempty"`
	Winner  *uuid.UUID `json:"winner,omitempty"`
	EndedAt time.Time  `json:"ended_at"`

	// Applied is false when the round had already been resolved and this
	// call only reports the recorded result.
	Applied bool `json:"applied"`
	// GiftAwarded is false when there was no winner or the gift had been
	// taken by another path before this round finished.
	GiftAwarded bool `json:"gift_awarded"`
}

func (o Outcome) HasWinner() bool { return o.Winner != nil }

// RoundEngine owns a single round's lifecycle inside a caller's transaction.
// Timestamps come from the engine clock only.
type RoundEngine struct {
	clock clockwork.Clock
}

func NewRoundEngine(clock clockwork.Clock) *RoundEngine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoundEngine{clock: clock}
}

// now is truncated to the store's timestamp precision so in-memory and
// Postgres stores order answers identically.
func (e *RoundEngine) now() time.Time {
	return e.clock.Now().UTC().Truncate(time.Microsecond)
}

// Open creates an active round for q, copying its time limit.
func (e *RoundEngine) Open(ctx context.Context, tx Tx, roomID uuid.UUID, q *models.Question, giftID uuid.UUID) (*models.Round, error) {
	gift := giftID
	r := &models.Round{
		ID:           uuid.New(),
		RoomID:       roomID,
		QuestionID:   q.ID,
		GiftID:       &gift,
		Status:       models.RoundActive,
		TimeLimitSec: q.TimeLimitSec,
		StartedAt:    e.now(),
	}
	if err := tx.InsertRound(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Submit records the first answer of playerID for roundID. Late and repeated
// submissions return ErrRoundNotActive and ErrDuplicateAnswer respectively.
func (e *RoundEngine) Submit(ctx context.Context, tx Tx, roundID, playerID uuid.UUID, option int) (*models.Answer, error) {
	r, err := tx.LockRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !r.Active() {
		return nil, ErrRoundNotActive
	}
	q, err := tx.GetQuestion(ctx, r.QuestionID)
	if err != nil {
		return nil, err
	}
	if !q.ValidOption(option) {
		return nil, preconditionf("option %d out of range", option)
	}

	a := &models.Answer{
		ID:          uuid.New(),
		RoundID:     roundID,
		PlayerID:    playerID,
		OptionIndex: option,
		AnsweredAt:  e.now(),
	}
	ok, err := tx.InsertAnswer(ctx, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicateAnswer
	}
	return a, nil
}

// Resolve finishes the round exactly once. On an already finished round it
// returns the recorded outcome with Applied=false.
func (e *RoundEngine) Resolve(ctx context.Context, tx Tx, roundID uuid.UUID) (Outcome, error) {
	r, err := tx.LockRound(ctx, roundID)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{RoundID: r.ID, RoomID: r.RoomID, GiftID: r.GiftID}
	if !r.Active() {
		out.Winner = r.WinnerID
		if r.EndedAt != nil {
			out.EndedAt = *r.EndedAt
		}
		return out, nil
	}

	q, err := tx.GetQuestion(ctx, r.QuestionID)
	if err != nil {
		return Outcome{}, err
	}
	answers, err := tx.ListAnswers(ctx, roundID)
	if err != nil {
		return Outcome{}, err
	}

	ended := e.now()
	r.Status = models.RoundFinished
	r.WinnerID = DecideWinner(q, answers)
	r.EndedAt = &ended
	ok, err := tx.FinishRound(ctx, r)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		// the row lock makes this unreachable on a conforming store
		return Outcome{}, preconditionf("round %s finished concurrently", roundID)
	}

	out.Winner = r.WinnerID
	out.EndedAt = ended
	out.Applied = true
	return out, nil
}
