package arena_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEndToEndTimerResolution: two players, B answers correctly before A,
// the round auto-resolves when the timer elapses.
func TestEndToEndTimerResolution(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	a, b := players[0], players[1]
	g1 := f.gift(t, "G1")
	q1 := f.question(t, 2, 10)

	round := f.start(t, room.ID, g1, q1)
	assert.Equal(t, models.RoomPlaying, f.mustRoom(t, room.ID).Status)

	f.clock.Advance(1 * time.Second)
	_, err := f.coord.SubmitAnswer(f.ctx, round.ID, b, 2)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Second)
	_, err = f.coord.SubmitAnswer(f.ctx, round.ID, a, 2)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Second)
	out, err := f.coord.CheckExpiry(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, out, "timer has one second left")

	f.clock.Advance(1 * time.Second)
	out, err = f.coord.CheckExpiry(f.ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Applied)
	assert.True(t, out.GiftAwarded)
	require.NotNil(t, out.Winner)
	assert.Equal(t, b, *out.Winner)

	gift := f.mustGift(t, g1.ID)
	require.NotNil(t, gift.WinnerID)
	assert.Equal(t, b, *gift.WinnerID)
	assert.True(t, f.mustParticipant(t, room.ID, b).HasWonGift)
	assert.False(t, f.mustParticipant(t, room.ID, a).HasWonGift)
	assert.Equal(t, models.RoomResults, f.mustRoom(t, room.ID).Status)

	finished, err := f.store.GetRound(f.ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundFinished, finished.Status)
	require.NotNil(t, finished.EndedAt)

	// later expiry checks observe the finished round and do nothing
	out, err = f.coord.CheckExpiry(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	g := f.gift(t, "Scarf")
	q := f.question(t, 1, 20)
	round := f.start(t, room.ID, g, q)
	_, err := f.coord.SubmitAnswer(f.ctx, round.ID, players[0], 1)
	require.NoError(t, err)

	first, err := f.coord.EndRound(f.ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := f.coord.ResolveRound(f.ctx, round.ID)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.True(t, second.GiftAwarded)
	require.NotNil(t, second.Winner)
	assert.Equal(t, *first.Winner, *second.Winner)
	assert.Equal(t, first.EndedAt, second.EndedAt)
	assert.Equal(t, 1, f.events.count(feed.TableGifts))
}

func TestConcurrentResolveAppliesOnce(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 3)
	g := f.gift(t, "Book")
	q := f.question(t, 0, 10)
	round := f.start(t, room.ID, g, q)
	for _, p := range players {
		_, err := f.coord.SubmitAnswer(f.ctx, round.ID, p, 0)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	f.clock.Advance(10 * time.Second)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
		winners = map[uuid.UUID]int{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var (
				out arena.Outcome
				err error
			)
			if i%2 == 0 {
				out, err = f.coord.ResolveRound(f.ctx, round.ID)
			} else {
				var o *arena.Outcome
				o, err = f.coord.CheckExpiry(f.ctx, room.ID)
				if o == nil {
					return
				}
				out = *o
			}
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if out.Applied {
				applied++
			}
			if out.Winner != nil {
				winners[*out.Winner]++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	require.Len(t, winners, 1)
	assert.Contains(t, winners, players[0])
	assert.Equal(t, 1, f.events.count(feed.TableGifts))

	won := 0
	for _, p := range players {
		if f.mustParticipant(t, room.ID, p).HasWonGift {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestNoWinnerLeavesGiftAvailable(t *testing.T) {
	for name, answers := range map[string][]int{
		"empty":     nil,
		"all wrong": {0, 3},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			room := f.room(t)
			players := f.join(t, room.ID, 2)
			g := f.gift(t, "Candle")
			q := f.question(t, 1, 10)
			round := f.start(t, room.ID, g, q)
			for i, opt := range answers {
				_, err := f.coord.SubmitAnswer(f.ctx, round.ID, players[i], opt)
				require.NoError(t, err)
			}

			out, err := f.coord.EndRound(f.ctx, room.ID)
			require.NoError(t, err)
			assert.True(t, out.Applied)
			assert.Nil(t, out.Winner)
			assert.False(t, out.GiftAwarded)

			assert.True(t, f.mustGift(t, g.ID).Available())
			assert.Equal(t, models.RoomResults, f.mustRoom(t, room.ID).Status)
			for _, p := range players {
				assert.False(t, f.mustParticipant(t, room.ID, p).HasWonGift)
			}

			// the same gift can be replayed
			_, err = f.coord.AdvanceToNextRound(f.ctx, room.ID)
			require.NoError(t, err)
			next := f.start(t, room.ID, g, f.question(t, 0, 10))
			assert.Equal(t, g.ID, *next.GiftID)
		})
	}
}

func TestDuplicateAnswerKeepsFirst(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	round := f.start(t, room.ID, f.gift(t, "Tea"), f.question(t, 1, 10))

	first, err := f.coord.SubmitAnswer(f.ctx, round.ID, players[0], 1)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.coord.SubmitAnswer(f.ctx, round.ID, players[0], 2)
	require.ErrorIs(t, err, arena.ErrDuplicateAnswer)
	assert.True(t, arena.IsSwallowed(err))

	answers, err := f.coord.Answers(f.ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, 1, answers[0].OptionIndex)
	assert.Equal(t, first.AnsweredAt, answers[0].AnsweredAt)
}

func TestLateAnswerIsSwallowed(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	round := f.start(t, room.ID, f.gift(t, "Socks"), f.question(t, 1, 10))
	_, err := f.coord.EndRound(f.ctx, room.ID)
	require.NoError(t, err)

	_, err = f.coord.SubmitAnswer(f.ctx, round.ID, players[1], 1)
	require.ErrorIs(t, err, arena.ErrRoundNotActive)
	assert.True(t, arena.IsSwallowed(err))
}

func TestWinnerResubmitIsSwallowed(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	round := f.start(t, room.ID, f.gift(t, "Mug"), f.question(t, 1, 10))
	_, err := f.coord.SubmitAnswer(f.ctx, round.ID, players[0], 1)
	require.NoError(t, err)

	out, err := f.coord.EndRound(f.ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Winner)
	require.Equal(t, players[0], *out.Winner)

	_, err = f.coord.SubmitAnswer(f.ctx, round.ID, players[0], 1)
	require.ErrorIs(t, err, arena.ErrRoundNotActive)
	assert.True(t, arena.IsSwallowed(err))
}

func TestDuplicateAnswerCheckedBeforeParticipant(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	round := f.start(t, room.ID, f.gift(t, "Hat"), f.question(t, 1, 10))
	_, err := f.coord.SubmitAnswer(f.ctx, round.ID, players[1], 0)
	require.NoError(t, err)

	_, err = f.coord.SubmitAnswer(f.ctx, round.ID, players[1], 1)
	require.ErrorIs(t, err, arena.ErrDuplicateAnswer)
	assert.True(t, arena.IsSwallowed(err))

	answers, err := f.coord.Answers(f.ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, 0, answers[0].OptionIndex)
}

func TestSubmitAnswerValidation(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	f.join(t, room.ID, 2)
	round := f.start(t, room.ID, f.gift(t, "Pen"), f.question(t, 1, 10))

	_, err := f.coord.SubmitAnswer(f.ctx, round.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, arena.ErrPreconditionFailed, "stranger")

	players, err := f.coord.Participants(f.ctx, room.ID)
	require.NoError(t, err)
	_, err = f.coord.SubmitAnswer(f.ctx, round.ID, players[0].PlayerID, 7)
	assert.ErrorIs(t, err, arena.ErrPreconditionFailed, "option out of range")
}

func TestQuestionNotRepeatedInRoom(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	f.join(t, room.ID, 3)
	q := f.question(t, 1, 10)
	other := f.question(t, 0, 10)
	g1, g2 := f.gift(t, "G1"), f.gift(t, "G2")

	f.start(t, room.ID, g1, q)
	available, err := f.coord.AvailableQuestions(f.ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, other.ID, available[0].ID)

	_, err = f.coord.EndRound(f.ctx, room.ID)
	require.NoError(t, err)
	_, err = f.coord.AdvanceToNextRound(f.ctx, room.ID)
	require.NoError(t, err)

	_, err = f.coord.StartRound(f.ctx, room.ID, &g2.ID, &q.ID)
	require.ErrorIs(t, err, arena.ErrPreconditionFailed)
	assert.Equal(t, models.RoomLobby, f.mustRoom(t, room.ID).Status, "rejected start leaves room untouched")

	// a fresh room may play the question again
	room2 := f.room(t)
	f.join(t, room2.ID, 2)
	f.start(t, room2.ID, g2, q)
}

func TestStartRoundPreconditions(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 3)
	g := f.gift(t, "Lamp")
	won := f.gift(t, "Gone")
	q := f.question(t, 1, 10)

	_, err := f.coord.ClaimGiftSlot(f.ctx, room.ID, won.ID, players[2])
	require.NoError(t, err)

	missing := uuid.New()
	cases := map[string]struct {
		gift, question *uuid.UUID
	}{
		"no gift":          {nil, &q.ID},
		"unknown gift":     {&missing, &q.ID},
		"gift already won": {&won.ID, &q.ID},
		"no question":      {&g.ID, nil},
		"unknown question": {&g.ID, &missing},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.coord.StartRound(f.ctx, room.ID, tc.gift, tc.question)
			assert.ErrorIs(t, err, arena.ErrPreconditionFailed)
		})
	}

	f.start(t, room.ID, g, q)
	_, err = f.coord.StartRound(f.ctx, room.ID, &g.ID, &q.ID)
	assert.ErrorIs(t, err, arena.ErrPreconditionFailed, "room is playing")

	_, err = f.coord.AdvanceToNextRound(f.ctx, room.ID)
	assert.ErrorIs(t, err, arena.ErrPreconditionFailed, "advance requires results")
}

func TestLastParticipantLastGiftDirectAward(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	g1, g2 := f.gift(t, "G1"), f.gift(t, "G2")
	q := f.question(t, 0, 10)

	// players[0] wins g1 in a regular round
	round := f.start(t, room.ID, g1, q)
	_, err := f.coord.SubmitAnswer(f.ctx, round.ID, players[0], 0)
	require.NoError(t, err)
	_, err = f.coord.EndRound(f.ctx, room.ID)
	require.NoError(t, err)
	_, err = f.coord.AdvanceToNextRound(f.ctx, room.ID)
	require.NoError(t, err)

	next := f.question(t, 1, 10)
	res, err := f.coord.StartRound(f.ctx, room.ID, &g2.ID, &next.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Round)
	require.NotNil(t, res.DirectAward)
	assert.Equal(t, arena.Award{GiftID: g2.ID, PlayerID: players[1]}, *res.DirectAward)

	gift := f.mustGift(t, g2.ID)
	require.NotNil(t, gift.WinnerID)
	assert.Equal(t, players[1], *gift.WinnerID)
	assert.True(t, f.mustParticipant(t, room.ID, players[1]).HasWonGift)
	assert.Equal(t, models.RoomLobby, f.mustRoom(t, room.ID).Status)

	available, err := f.coord.AvailableQuestions(f.ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, available, 1, "direct award does not consume the question")
	assert.Contains(t, f.actions.kinds(), models.ActionDirectAward)
}

func TestDirectAwardWithoutSelection(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 1)
	g := f.gift(t, "Only")

	res, err := f.coord.StartRound(f.ctx, room.ID, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res.DirectAward)
	assert.Equal(t, players[0], res.DirectAward.PlayerID)
	assert.Equal(t, g.ID, res.DirectAward.GiftID)
}

func TestClaimAvatarRace(t *testing.T) {
	f := newFixture(t)
	avatar := models.Avatar{ID: uuid.New(), Name: "Lutin"}
	require.NoError(t, f.store.PutAvatar(f.ctx, avatar))
	a, b := uuid.New(), uuid.New()

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, p := range []uuid.UUID{a, b} {
		wg.Add(1)
		go func(i int, p uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.coord.ClaimAvatar(f.ctx, avatar.ID, p)
		}(i, p)
	}
	wg.Wait()

	var winner, loser uuid.UUID
	switch {
	case errs[0] == nil && errors.Is(errs[1], arena.ErrAlreadyClaimed):
		winner, loser = a, b
	case errs[1] == nil && errors.Is(errs[0], arena.ErrAlreadyClaimed):
		winner, loser = b, a
	default:
		t.Fatalf("expected exactly one success, got %v / %v", errs[0], errs[1])
	}

	stored, err := f.store.GetAvatar(f.ctx, avatar.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ClaimedBy)
	assert.Equal(t, winner, *stored.ClaimedBy)

	var conflict *arena.ClaimConflict
	lostErr := errs[0]
	if loser == b {
		lostErr = errs[1]
	}
	require.ErrorAs(t, lostErr, &conflict)
	require.NotNil(t, conflict.Holder)
	assert.Equal(t, winner, *conflict.Holder)

	prof, err := f.store.GetProfile(f.ctx, winner)
	require.NoError(t, err)
	assert.Equal(t, avatar.ID, *prof.AvatarID)
	_, err = f.store.GetProfile(f.ctx, loser)
	assert.ErrorIs(t, err, arena.ErrNotFound)
}

func TestClaimSecondAvatarRejected(t *testing.T) {
	f := newFixture(t)
	first, second := models.Avatar{ID: uuid.New()}, models.Avatar{ID: uuid.New()}
	require.NoError(t, f.store.PutAvatar(f.ctx, first))
	require.NoError(t, f.store.PutAvatar(f.ctx, second))
	p := uuid.New()

	_, err := f.coord.ClaimAvatar(f.ctx, first.ID, p)
	require.NoError(t, err)
	_, err = f.coord.ClaimAvatar(f.ctx, second.ID, p)
	assert.ErrorIs(t, err, arena.ErrPreconditionFailed)
	got, err := f.store.GetAvatar(f.ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, got.Available())
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	p := uuid.New()

	first, created, err := f.coord.JoinRoom(f.ctx, room.ID, p)
	require.NoError(t, err)
	assert.True(t, created)
	f.clock.Advance(time.Minute)
	again, created, err := f.coord.JoinRoom(f.ctx, room.ID, p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.JoinedAt, again.JoinedAt)
	assert.Equal(t, 1, f.events.count(feed.TableParticipants))

	_, _, err = f.coord.JoinRoom(f.ctx, uuid.New(), p)
	assert.ErrorIs(t, err, arena.ErrNotFound)
}

func TestCreateRoomReplacesActiveRoom(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.ActiveRoom(f.ctx)
	require.ErrorIs(t, err, arena.ErrNoActiveRoom)

	old := f.room(t)
	f.clock.Advance(time.Second)
	current := f.room(t)

	active, err := f.coord.ActiveRoom(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, current.ID, active.ID)
	assert.NotEqual(t, old.ID, active.ID)
	assert.Equal(t, 2, f.events.count(feed.TableSession))
}

func TestSnapshotAndWinnerPseudo(t *testing.T) {
	f := newFixture(t)
	room := f.room(t)
	players := f.join(t, room.ID, 2)
	require.NoError(t, f.store.PutProfile(f.ctx, models.Profile{ID: players[0], Pseudo: "Mère Noël"}))
	g := f.gift(t, "Puzzle")
	round := f.start(t, room.ID, g, f.question(t, 3, 30))

	f.clock.Advance(5 * time.Second)
	_, err := f.coord.SubmitAnswer(f.ctx, round.ID, players[0], 3)
	require.NoError(t, err)

	snap, err := f.coord.Snapshot(f.ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.Round)
	assert.Equal(t, 25*time.Second, snap.Remaining())
	assert.True(t, snap.Answered(players[0]))
	assert.False(t, snap.Answered(players[1]))
	assert.Equal(t, "Mère Noël", snap.Participant(players[0]).Pseudo)
	assert.Equal(t, models.DefaultPseudo, snap.Participant(players[1]).Pseudo)

	_, err = f.coord.EndRound(f.ctx, room.ID)
	require.NoError(t, err)
	pseudo, err := f.coord.WinnerPseudo(f.ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mère Noël", pseudo)

	kinds := f.actions.kinds()
	assert.Equal(t, []string{
		models.ActionRoomCreated,
		models.ActionPlayerJoined,
		models.ActionPlayerJoined,
		models.ActionRoundStarted,
		models.ActionAnswer,
		models.ActionRoundResolved,
	}, kinds)
}
