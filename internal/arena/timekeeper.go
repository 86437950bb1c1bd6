package arena

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Timekeeper is the server-side timer mode: one timer per active round, armed
// from change events and fired into Coordinator.CheckExpiry. Observers keep
// calling CheckExpiry too; the guard and idempotent resolve make the two
// modes safe to mix.
type Timekeeper struct {
	coord  *Coordinator
	hub    *feed.Hub
	clock  clockwork.Clock
	logger *logrus.Logger

	mu     sync.Mutex
	timers map[uuid.UUID]*armedTimer // by round id
	fired  chan uuid.UUID            // room ids
}

type armedTimer struct {
	t        clockwork.Timer
	deadline time.Time
	stop     chan struct{}
}

func (a *armedTimer) cancel() {
	stopAndDrainTimer(a.t)
	close(a.stop)
}

func NewTimekeeper(coord *Coordinator, hub *feed.Hub) *Timekeeper {
	return &Timekeeper{
		coord:  coord,
		hub:    hub,
		clock:  coord.clock,
		logger: coord.logger,
		timers: make(map[uuid.UUID]*armedTimer),
		fired:  make(chan uuid.UUID, 8),
	}
}

// Run arms a timer for the active room's round, then follows the feed until
// ctx is done.
func (k *Timekeeper) Run(ctx context.Context) error {
	sub := k.hub.Subscribe(uuid.Nil)
	defer sub.Close()
	defer k.stopAll()

	if room, err := k.coord.ActiveRoom(ctx); err == nil {
		k.arm(ctx, room.ID)
	} else if !errors.Is(err, ErrNotFound) {
		k.logger.WithError(err).Warn("timekeeper: initial scan failed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			switch ev.Table {
			case feed.TableRounds, feed.TableRooms:
				k.arm(ctx, ev.RoomID)
			case feed.TableSession:
				k.arm(ctx, ev.RowID)
			}
		case roomID := <-k.fired:
			out, err := k.coord.CheckExpiry(ctx, roomID)
			if err != nil {
				k.logger.WithError(err).WithField("roomID", roomID).Error("timekeeper: resolve failed")
				k.retryLater(ctx, roomID)
				continue
			}
			if out != nil && out.Applied {
				k.logger.WithField("roundID", out.RoundID).Debug("timekeeper resolved round")
			}
		}
	}
}

// retryDelay spaces out expiry retries while the store is failing.
const retryDelay = 2 * time.Second

func (k *Timekeeper) retryLater(ctx context.Context, roomID uuid.UUID) {
	go func() {
		select {
		case <-k.clock.After(retryDelay):
			select {
			case k.fired <- roomID:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
}

// arm (re)schedules the timer for the room's current round, or cancels it
// when the room has no active round.
func (k *Timekeeper) arm(ctx context.Context, roomID uuid.UUID) {
	if roomID == uuid.Nil {
		return
	}
	room, err := k.coord.store.GetRoom(ctx, roomID)
	if err != nil {
		k.logger.WithError(err).WithField("roomID", roomID).Warn("timekeeper: read room failed")
		return
	}
	if room.CurrentRoundID == nil {
		return
	}
	r, err := k.coord.store.GetRound(ctx, *room.CurrentRoundID)
	if err != nil {
		k.logger.WithError(err).WithField("roundID", *room.CurrentRoundID).Warn("timekeeper: read round failed")
		return
	}
	if !r.Active() {
		k.cancel(r.ID)
		return
	}

	if k.armedFor(r.ID, r.Deadline()) {
		return
	}
	d := r.Remaining(k.clock.Now())
	if d < 0 {
		d = 0
	}
	armed := &armedTimer{t: k.clock.NewTimer(d), deadline: r.Deadline(), stop: make(chan struct{})}
	k.replace(r.ID, armed)
	go func(roundID uuid.UUID, a *armedTimer) {
		select {
		case <-a.t.Chan():
			k.remove(roundID, a)
			select {
			case k.fired <- roomID:
			case <-ctx.Done():
			}
		case <-a.stop:
		case <-ctx.Done():
		}
	}(r.ID, armed)
}

// armedFor reports whether a timer for the same deadline is already pending.
func (k *Timekeeper) armedFor(roundID uuid.UUID, deadline time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	a, ok := k.timers[roundID]
	return ok && a.deadline.Equal(deadline)
}

func (k *Timekeeper) replace(roundID uuid.UUID, a *armedTimer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if old, ok := k.timers[roundID]; ok {
		old.cancel()
	}
	k.timers[roundID] = a
}

func (k *Timekeeper) remove(roundID uuid.UUID, a *armedTimer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timers[roundID] == a {
		delete(k.timers, roundID)
	}
}

func (k *Timekeeper) cancel(roundID uuid.UUID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if a, ok := k.timers[roundID]; ok {
		a.cancel()
		delete(k.timers, roundID)
	}
}

func (k *Timekeeper) stopAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for id, a := range k.timers {
		a.cancel()
		delete(k.timers, id)
	}
}

// Pending returns the number of armed timers.
func (k *Timekeeper) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.timers)
}

func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
