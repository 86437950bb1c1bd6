package arena

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Config wires a Coordinator. Store is required; the rest default to no-ops,
// the real clock and the standard logrus logger.
type Config struct {
	Store   Store
	Feed    feed.Publisher
	Actions ActionSink
	Clock   clockwork.Clock
	Logger  *logrus.Logger
}

// Coordinator drives the room state machine (lobby -> playing -> results ->
// lobby). It holds no game state: every command is one store transaction and
// change events are published only after commit.
type Coordinator struct {
	store   Store
	feed    feed.Publisher
	actions ActionSink
	clock   clockwork.Clock
	logger  *logrus.Logger

	rounds *RoundEngine
	ledger Ledger
	guard  *roundGuard
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Store == nil {
		panic("arena: Config.Store is required")
	}
	if cfg.Feed == nil {
		cfg.Feed = feed.Discard
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Coordinator{
		store:   cfg.Store,
		feed:    cfg.Feed,
		actions: cfg.Actions,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		rounds:  NewRoundEngine(cfg.Clock),
		guard:   newRoundGuard(),
	}
}

func (c *Coordinator) Clock() clockwork.Clock { return c.clock }

// changes buffers the feed events and action records of one transaction.
type changes struct {
	at      time.Time
	events  []feed.Event
	actions []models.ActionRecord
}

func (ch *changes) touch(table, op string, rowID, roomID uuid.UUID) {
	ch.events = append(ch.events, feed.Event{Table: table, Op: op, RowID: rowID, RoomID: roomID, At: ch.at})
}

func (ch *changes) record(rec models.ActionRecord) {
	rec.At = ch.at
	ch.actions = append(ch.actions, rec)
}

func (c *Coordinator) commit(ctx context.Context, fn func(tx Tx, ch *changes) error) error {
	ch := &changes{}
	err := c.store.InTx(ctx, func(tx Tx) error {
		*ch = changes{at: c.clock.Now().UTC()}
		return fn(tx, ch)
	})
	if err != nil {
		return err
	}
	c.flush(context.WithoutCancel(ctx), ch)
	return nil
}

func (c *Coordinator) flush(ctx context.Context, ch *changes) {
	for _, ev := range ch.events {
		if err := c.feed.Publish(ctx, ev); err != nil {
			c.logger.WithError(err).WithField("event", ev.String()).Warn("failed to publish change event")
		}
	}
	if c.actions == nil {
		return
	}
	for _, rec := range ch.actions {
		if err := c.actions.Record(ctx, rec); err != nil {
			c.logger.WithError(err).WithField("kind", rec.Kind).Warn("failed to queue arena action")
		}
	}
}

// CreateRoom opens a new lobby and makes it the session's active room. The
// previous room, if any, becomes inert history.
func (c *Coordinator) CreateRoom(ctx context.Context) (*models.Room, error) {
	var room *models.Room
	err := c.commit(ctx, func(tx Tx, ch *changes) error {
		room = &models.Room{ID: uuid.New(), Status: models.RoomLobby, CreatedAt: ch.at}
		if err := tx.InsertRoom(ctx, room); err != nil {
			return err
		}
		if err := tx.SetActiveRoom(ctx, room.ID); err != nil {
			return err
		}
		ch.touch(feed.TableRooms, feed.OpInsert, room.ID, room.ID)
		ch.touch(feed.TableSession, feed.OpUpdate, room.ID, uuid.Nil)
		ch.record(models.ActionRecord{Kind: models.ActionRoomCreated, RoomID: room.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.WithField("roomID", room.ID).Info("arena room created")
	return room, nil
}

// JoinRoom adds playerID to the room. A repeated join returns the existing
// participant with created=false.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID, playerID uuid.UUID) (p *models.Participant, created bool, err error) {
	err = c.commit(ctx, func(tx Tx, ch *changes) error {
		if _, err := tx.GetRoom(ctx, roomID); err != nil {
			return err
		}
		p = &models.Participant{RoomID: roomID, PlayerID: playerID, JoinedAt: ch.at}
		ok, err := tx.InsertParticipant(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			p, err = tx.GetParticipant(ctx, roomID, playerID)
			return err
		}
		created = true
		player := playerID
		ch.touch(feed.TableParticipants, feed.OpInsert, playerID, roomID)
		ch.record(models.ActionRecord{Kind: models.ActionPlayerJoined, RoomID: roomID, PlayerID: &player})
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return p, created, nil
}

// Award is a gift assigned without a round.
type Award struct {
	GiftID   uuid.UUID `json:"gift_id"`
	PlayerID uuid.UUID `json:"player_id"`
}

// StartResult holds either the opened round or, for the last player and
// last gift, the direct award.
type StartResult struct {
	Round       *models.Round `json:"round,omitempty"`
	DirectAward *Award        `json:"direct_award,omitempty"`
}

// StartRound opens a round for giftID and questionID. When exactly one
// participant is still without a gift and exactly one gift is available, the
// gift goes straight to that participant and no round is created. Every
// condition is re-checked inside the transaction.
func (c *Coordinator) StartRound(ctx context.Context, roomID uuid.UUID, giftID, questionID *uuid.UUID) (*StartResult, error) {
	res := &StartResult{}
	err := c.commit(ctx, func(tx Tx, ch *changes) error {
		*res = StartResult{}
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomLobby {
			return preconditionf("room is %s, not lobby", room.Status)
		}

		participants, err := tx.ListParticipants(ctx, roomID)
		if err != nil {
			return err
		}
		var remaining []models.Participant
		for _, p := range participants {
			if !p.HasWonGift {
				remaining = append(remaining, p)
			}
		}
		available, err := tx.ListAvailableGifts(ctx)
		if err != nil {
			return err
		}

		if len(remaining) == 1 && len(available) == 1 {
			last := available[0].ID
			if giftID != nil && *giftID != last {
				return preconditionf("gift %s is not available", *giftID)
			}
			award, err := c.award(ctx, tx, ch, roomID, last, remaining[0].PlayerID)
			if err != nil {
				return err
			}
			res.DirectAward = award
			return nil
		}

		if giftID == nil {
			return preconditionf("no gift selected")
		}
		if len(remaining) == 0 {
			return preconditionf("no participant left without a gift")
		}
		gift, err := tx.GetGift(ctx, *giftID)
		if errors.Is(err, ErrNotFound) {
			return preconditionf("gift %s does not exist", *giftID)
		} else if err != nil {
			return err
		}
		if !gift.Available() {
			return preconditionf("gift %s already won", gift.ID)
		}

		if questionID == nil {
			return preconditionf("no question selected")
		}
		q, err := tx.GetQuestion(ctx, *questionID)
		if errors.Is(err, ErrNotFound) {
			return preconditionf("question %s does not exist", *questionID)
		} else if err != nil {
			return err
		}
		fresh, err := tx.UseQuestion(ctx, roomID, q.ID)
		if err != nil {
			return err
		}
		if !fresh {
			return preconditionf("question %s already used in this room", q.ID)
		}

		round, err := c.rounds.Open(ctx, tx, roomID, q, gift.ID)
		if err != nil {
			return err
		}
		if err := tx.UpdateRoom(ctx, roomID, models.RoomPlaying, &round.ID); err != nil {
			return err
		}
		res.Round = round

		rid := round.ID
		ch.touch(feed.TableRounds, feed.OpInsert, round.ID, roomID)
		ch.touch(feed.TableRooms, feed.OpUpdate, roomID, roomID)
		ch.record(models.ActionRecord{
			Kind:    models.ActionRoundStarted,
			RoomID:  roomID,
			RoundID: &rid,
			Payload: map[string]interface{}{"gift_id": gift.ID, "question_id": q.ID, "time_limit": q.TimeLimitSec},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"roomID": roomID}
	if res.DirectAward != nil {
		fields["giftID"] = res.DirectAward.GiftID
		fields["playerID"] = res.DirectAward.PlayerID
		c.logger.WithFields(fields).Info("last gift assigned directly")
	} else {
		fields["roundID"] = res.Round.ID
		c.logger.WithFields(fields).Info("round started")
	}
	return res, nil
}

// ClaimGiftSlot assigns giftID to a participant of roomID outside any round.
// The participant must not have won yet.
func (c *Coordinator) ClaimGiftSlot(ctx context.Context, roomID, giftID, playerID uuid.UUID) (*Award, error) {
	var award *Award
	err := c.commit(ctx, func(tx Tx, ch *changes) error {
		if _, err := tx.LockRoom(ctx, roomID); err != nil {
			return err
		}
		var err error
		award, err = c.award(ctx, tx, ch, roomID, giftID, playerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return award, nil
}

func (c *Coordinator) award(ctx context.Context, tx Tx, ch *changes, roomID, giftID, playerID uuid.UUID) (*Award, error) {
	p, err := tx.GetParticipant(ctx, roomID, playerID)
	if errors.Is(err, ErrNotFound) {
		return nil, preconditionf("player %s has not joined the room", playerID)
	} else if err != nil {
		return nil, err
	}
	if p.HasWonGift {
		return nil, preconditionf("player %s already won a gift", playerID)
	}
	if err := c.ledger.Claim(ctx, tx, ResourceGift, giftID, playerID); err != nil {
		return nil, err
	}
	if ok, err := tx.MarkParticipantWon(ctx, roomID, playerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, preconditionf("player %s already won a gift", playerID)
	}

	player := playerID
	ch.touch(feed.TableGifts, feed.OpUpdate, giftID, roomID)
	ch.touch(feed.TableParticipants, feed.OpUpdate, playerID, roomID)
	ch.record(models.ActionRecord{
		Kind:     models.ActionDirectAward,
		RoomID:   roomID,
		PlayerID: &player,
		Payload:  map[string]interface{}{"gift_id": giftID},
	})
	return &Award{GiftID: giftID, PlayerID: playerID}, nil
}

// SubmitAnswer records a player's first answer. Late or repeated answers
// return ErrRoundNotActive or ErrDuplicateAnswer; see IsSwallowed.
func (c *Coordinator) SubmitAnswer(ctx context.Context, roundID, playerID uuid.UUID, option int) (*models.Answer, error) {
	var answer *models.Answer
	err := c.commit(ctx, func(tx Tx, ch *changes) error {
		// swallowed cases are decided before any participant check
		r, err := tx.LockRound(ctx, roundID)
		if err != nil {
			return err
		}
		if !r.Active() {
			return ErrRoundNotActive
		}
		existing, err := tx.ListAnswers(ctx, roundID)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.PlayerID == playerID {
				return ErrDuplicateAnswer
			}
		}

		p, err := tx.GetParticipant(ctx, r.RoomID, playerID)
		if errors.Is(err, ErrNotFound) {
			return preconditionf("player %s has not joined the room", playerID)
		} else if err != nil {
			return err
		}
		if p.HasWonGift {
			return preconditionf("player %s already won a gift", playerID)
		}

		answer, err = c.rounds.Submit(ctx, tx, roundID, playerID, option)
		if err != nil {
			return err
		}
		rid, player := roundID, playerID
		ch.touch(feed.TableAnswers, feed.OpInsert, answer.ID, r.RoomID)
		ch.record(models.ActionRecord{
			Kind:     models.ActionAnswer,
			RoomID:   r.RoomID,
			RoundID:  &rid,
			PlayerID: &player,
			Payload:  map[string]interface{}{"option": option},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// ResolveRound finishes roundID and applies its outcome as one unit: round
// finished, gift winner set, participant flagged, room moved to results.
// Resolving a finished round is a no-op returning the recorded outcome.
func (c *Coordinator) ResolveRound(ctx context.Context, roundID uuid.UUID) (Outcome, error) {
	var out Outcome
	err := c.commit(ctx, func(tx Tx, ch *changes) error {
		r, err := tx.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if _, err := tx.LockRoom(ctx, r.RoomID); err != nil {
			return err
		}
		out, err = c.rounds.Resolve(ctx, tx, roundID)
		if err != nil {
			return err
		}
		if !out.Applied {
			if out.Winner != nil && out.GiftID != nil {
				g, err := tx.GetGift(ctx, *out.GiftID)
				if err != nil {
					return err
				}
				out.GiftAwarded = g.WinnerID != nil && *g.WinnerID == *out.Winner
			}
			return nil
		}

		if out.Winner != nil && out.GiftID != nil {
			err := c.ledger.Claim(ctx, tx, ResourceGift, *out.GiftID, *out.Winner)
			var conflict *ClaimConflict
			switch {
			case errors.As(err, &conflict):
				c.logger.WithFields(logrus.Fields{
					"roundID": roundID,
					"giftID":  *out.GiftID,
				}).Warn("round winner decided but gift was already taken")
			case err != nil:
				return err
			default:
				if _, err := tx.MarkParticipantWon(ctx, r.RoomID, *out.Winner); err != nil {
					return err
				}
				out.GiftAwarded = true
				ch.touch(feed.TableGifts, feed.OpUpdate, *out.GiftID, r.RoomID)
				ch.touch(feed.TableParticipants, feed.OpUpdate, *out.Winner, r.RoomID)
			}
		}
		if err := tx.UpdateRoom(ctx, r.RoomID, models.RoomResults, &r.ID); err != nil {
			return err
		}

		rid := r.ID
		ch.touch(feed.TableRounds, feed.OpUpdate, r.ID, r.RoomID)
		ch.touch(feed.TableRooms, feed.OpUpdate, r.RoomID, r.RoomID)
		ch.record(models.ActionRecord{
			Kind:     models.ActionRoundResolved,
			RoomID:   r.RoomID,
			RoundID:  &rid,
			PlayerID: out.Winner,
			Payload:  map[string]interface{}{"gift_awarded": out.GiftAwarded},
		})
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	c.guard.markDone(roundID)
	if out.Applied {
		entry := c.logger.WithFields(logrus.Fields{"roundID": roundID, "roomID": out.RoomID})
		if out.Winner != nil {
			entry = entry.WithField("winner", *out.Winner)
		}
		entry.Info("round resolved")
	}
	return out, nil
}

// EndRound is the explicit admin path: it resolves the room's current round.
func (c *Coordinator) EndRound(ctx context.Context, roomID uuid.UUID) (Outcome, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		return Outcome{}, err
	}
	if room.CurrentRoundID == nil {
		return Outcome{}, preconditionf("room has no round to end")
	}
	return c.ResolveRound(ctx, *room.CurrentRoundID)
}

// CheckExpiry resolves the room's current round if its timer has elapsed.
// Any number of observers may call it concurrently; the per-round guard lets
// one of them through per process and ResolveRound is idempotent across
// processes. It returns nil when nothing was due.
func (c *Coordinator) CheckExpiry(ctx context.Context, roomID uuid.UUID) (*Outcome, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomPlaying || room.CurrentRoundID == nil {
		return nil, nil
	}
	roundID := *room.CurrentRoundID
	if c.guard.isDone(roundID) {
		return nil, nil
	}
	r, err := c.store.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !r.Active() {
		c.guard.markDone(roundID)
		return nil, nil
	}
	if r.Remaining(c.clock.Now()) > 0 {
		return nil, nil
	}

	if !c.guard.acquire(roundID) {
		return nil, nil
	}
	out, err := c.ResolveRound(ctx, roundID)
	c.guard.release(roundID, err == nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdvanceToNextRound moves a room in results back to lobby.
func (c *Coordinator) AdvanceToNextRound(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	var (
		room     *models.Room
		previous *uuid.UUID
	)
	err := c.commit(ctx, func(tx Tx, ch *changes) error {
		var err error
		room, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomResults {
			return preconditionf("room is %s, not results", room.Status)
		}
		previous = room.CurrentRoundID
		if err := tx.UpdateRoom(ctx, roomID, models.RoomLobby, nil); err != nil {
			return err
		}
		room.Status = models.RoomLobby
		room.CurrentRoundID = nil
		ch.touch(feed.TableRooms, feed.OpUpdate, roomID, roomID)
		ch.record(models.ActionRecord{Kind: models.ActionRoomAdvanced, RoomID: roomID, RoundID: previous})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != nil {
		c.guard.forget(*previous)
	}
	return room, nil
}

// ClaimAvatar assigns avatarID to playerID and points the player's profile at
// it. A player holds at most one avatar.
func (c *Coordinator) ClaimAvatar(ctx context.Context, avatarID, playerID uuid.UUID) (*models.Avatar, error) {
	var avatar *models.Avatar
	err := c.commit(ctx, func(tx Tx, ch *changes) error {
		profile, err := tx.LockProfile(ctx, playerID)
		if err != nil {
			return err
		}
		if profile.AvatarID != nil {
			return preconditionf("player %s already has avatar %s", playerID, *profile.AvatarID)
		}
		if err := c.ledger.Claim(ctx, tx, ResourceAvatar, avatarID, playerID); err != nil {
			return err
		}
		if err := tx.SetProfileAvatar(ctx, playerID, avatarID); err != nil {
			return err
		}
		avatar, err = tx.GetAvatar(ctx, avatarID)
		if err != nil {
			return err
		}
		player := playerID
		ch.touch(feed.TableAvatars, feed.OpUpdate, avatarID, uuid.Nil)
		ch.record(models.ActionRecord{
			Kind:     models.ActionAvatarClaimed,
			PlayerID: &player,
			Payload:  map[string]interface{}{"avatar_id": avatarID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return avatar, nil
}
