package arena_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jason-s-yu/arena/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// recorder collects published events instead of fanning them out.
type recorder struct {
	mu     sync.Mutex
	events []feed.Event
}

func (r *recorder) Publish(_ context.Context, ev feed.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(table string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Table == table {
			n++
		}
	}
	return n
}

// actionLog is an in-memory ActionSink.
type actionLog struct {
	mu   sync.Mutex
	recs []models.ActionRecord
}

func (a *actionLog) Record(_ context.Context, rec models.ActionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

func (a *actionLog) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.recs))
	for i, r := range a.recs {
		out[i] = r.Kind
	}
	return out
}

type fixture struct {
	ctx     context.Context
	clock   *clockwork.FakeClock
	store   *store.Memory
	hub     *feed.Hub
	events  *recorder
	actions *actionLog
	coord   *arena.Coordinator
}

var epoch = time.Date(2025, 12, 19, 20, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		clock:   clockwork.NewFakeClockAt(epoch),
		store:   store.NewMemory(),
		events:  &recorder{},
		actions: &actionLog{},
	}
	logger := quietLogger()
	f.hub = feed.NewHub(logger)
	f.coord = arena.NewCoordinator(arena.Config{
		Store:   f.store,
		Feed:    feed.Multi{f.hub, f.events},
		Actions: f.actions,
		Clock:   f.clock,
		Logger:  logger,
	})
	return f
}

func (f *fixture) question(t *testing.T, correct, limitSec int) models.Question {
	t.Helper()
	q := models.Question{
		ID:           uuid.New(),
		Prompt:       "Which reindeer has a red nose?",
		Options:      []string{"Dasher", "Comet", "Rudolph", "Vixen"},
		CorrectIndex: correct,
		TimeLimitSec: limitSec,
	}
	require.NoError(t, f.store.PutQuestion(f.ctx, q))
	return q
}

func (f *fixture) gift(t *testing.T, title string) models.Gift {
	t.Helper()
	g := models.Gift{ID: uuid.New(), OwnerID: uuid.New(), Title: title}
	require.NoError(t, f.store.PutGift(f.ctx, g))
	return g
}

func (f *fixture) room(t *testing.T) *models.Room {
	t.Helper()
	room, err := f.coord.CreateRoom(f.ctx)
	require.NoError(t, err)
	return room
}

func (f *fixture) join(t *testing.T, roomID uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	players := make([]uuid.UUID, n)
	for i := range players {
		players[i] = uuid.New()
		_, created, err := f.coord.JoinRoom(f.ctx, roomID, players[i])
		require.NoError(t, err)
		require.True(t, created)
	}
	return players
}

func (f *fixture) start(t *testing.T, roomID uuid.UUID, g models.Gift, q models.Question) *models.Round {
	t.Helper()
	res, err := f.coord.StartRound(f.ctx, roomID, &g.ID, &q.ID)
	require.NoError(t, err)
	require.Nil(t, res.DirectAward)
	require.NotNil(t, res.Round)
	return res.Round
}

func (f *fixture) mustRoom(t *testing.T, id uuid.UUID) *models.Room {
	t.Helper()
	r, err := f.store.GetRoom(f.ctx, id)
	require.NoError(t, err)
	return r
}

func (f *fixture) mustGift(t *testing.T, id uuid.UUID) *models.Gift {
	t.Helper()
	g, err := f.store.GetGift(f.ctx, id)
	require.NoError(t, err)
	return g
}

func (f *fixture) mustParticipant(t *testing.T, roomID, playerID uuid.UUID) *models.Participant {
	t.Helper()
	p, err := f.store.GetParticipant(f.ctx, roomID, playerID)
	require.NoError(t, err)
	return p
}
