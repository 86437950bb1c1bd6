package arena

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
)

// ProfileDirectory resolves a player's display name and avatar.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, playerID uuid.UUID) (*models.Profile, error)
}

// GiftCatalog returns gift content and winner bookkeeping.
type GiftCatalog interface {
	GetGift(ctx context.Context, id uuid.UUID) (*models.Gift, error)
}

// Reader is the read side of the shared store. All methods are safe to call
// repeatedly; list results are ordered deterministically.
type Reader interface {
	ProfileDirectory
	GiftCatalog

	ActiveRoomID(ctx context.Context) (uuid.UUID, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	GetAvatar(ctx context.Context, id uuid.UUID) (*models.Avatar, error)
	GetParticipant(ctx context.Context, roomID, playerID uuid.UUID) (*models.Participant, error)

	// ListParticipants returns participants in join order.
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error)
	ListAvailableGifts(ctx context.Context) ([]models.Gift, error)
	// ListUnusedQuestions returns questions never played in roomID.
	ListUnusedQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error)
	// ListAnswers returns answers in submission order.
	ListAnswers(ctx context.Context, roundID uuid.UUID) ([]models.Answer, error)
	ListAvatars(ctx context.Context) ([]models.Avatar, error)
}

// Tx is one atomic unit of work. Conditional writes report whether they
// applied; a false result means the guarding condition did not hold at
// commit time and nothing was written.
type Tx interface {
	Reader

	// LockRoom and LockRound read a row and hold it until the transaction
	// ends. Lock order is room before round.
	LockRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	LockRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	// LockProfile holds the player's profile row, creating an empty one
	// when the player has none yet.
	LockProfile(ctx context.Context, playerID uuid.UUID) (*models.Profile, error)

	InsertRoom(ctx context.Context, room *models.Room) error
	SetActiveRoom(ctx context.Context, roomID uuid.UUID) error
	UpdateRoom(ctx context.Context, roomID uuid.UUID, status models.RoomStatus, currentRound *uuid.UUID) error

	// InsertParticipant is a no-op returning false when the player already joined.
	InsertParticipant(ctx context.Context, p *models.Participant) (bool, error)
	// MarkParticipantWon flips has_won_gift false->true only.
	MarkParticipantWon(ctx context.Context, roomID, playerID uuid.UUID) (bool, error)

	// UseQuestion records the (room, question) pair, false if already used.
	UseQuestion(ctx context.Context, roomID, questionID uuid.UUID) (bool, error)
	InsertRound(ctx context.Context, r *models.Round) error
	// FinishRound applies only while the round is active.
	FinishRound(ctx context.Context, r *models.Round) (bool, error)
	// InsertAnswer returns false on a (round, player) conflict.
	InsertAnswer(ctx context.Context, a *models.Answer) (bool, error)

	// ClaimGift and ClaimAvatar are compare-and-swap writes guarded by
	// "winner/claimed_by IS NULL".
	ClaimGift(ctx context.Context, giftID, playerID uuid.UUID) (bool, error)
	ClaimAvatar(ctx context.Context, avatarID, playerID uuid.UUID) (bool, error)
	SetProfileAvatar(ctx context.Context, playerID, avatarID uuid.UUID) error
}

// Store is the canonical shared state. InTx commits when fn returns nil and
// rolls back every write otherwise.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// ActionSink receives a record of each accepted command. Implementations
// must not block the caller for long; failures are logged and dropped.
type ActionSink interface {
	Record(ctx context.Context, rec models.ActionRecord) error
}
