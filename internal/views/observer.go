// internal/views/observer.go
package views

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/feed"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Source is the read side an observer renders from, plus the expiry check it
// runs in observer timer mode. *arena.Coordinator implements it.
type Source interface {
	ActiveRoom(ctx context.Context) (*models.Room, error)
	Snapshot(ctx context.Context, roomID uuid.UUID) (*arena.Snapshot, error)
	AvailableGifts(ctx context.Context) ([]models.Gift, error)
	AvailableQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error)
	Pseudo(ctx context.Context, playerID uuid.UUID) (string, error)
	CheckExpiry(ctx context.Context, roomID uuid.UUID) (*arena.Outcome, error)
}

// DefaultTick refreshes countdowns and resyncs in case a feed event was lost.
const DefaultTick = time.Second

// Observer is one client's loop: it re-derives its projection from Source on
// every feed event and on every tick, and emits it when it changed. It holds
// no state that outlives a render.
type Observer struct {
	Source   Source
	Hub      *feed.Hub
	Role     Role
	PlayerID uuid.UUID
	Clock    clockwork.Clock
	Tick     time.Duration
	// CheckExpiry makes every tick attempt timer resolution of the current round.
	CheckExpiry bool
	Emit        func(ctx context.Context, view interface{}) error
	Logger      *logrus.Logger

	roomID uuid.UUID
	sub    *feed.Subscription
	last   []byte
}

// Run blocks until ctx is done or Emit fails.
func (o *Observer) Run(ctx context.Context) error {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}

	o.follow(ctx)
	defer func() { o.sub.Close() }()
	ticker := o.Clock.NewTicker(o.Tick)
	defer ticker.Stop()

	if err := o.render(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-o.sub.C:
			if !ok {
				return nil
			}
			if ev.Table == feed.TableSession && ev.RowID != o.roomID {
				o.follow(ctx)
			}
		case <-ticker.Chan():
			if o.CheckExpiry && o.roomID != uuid.Nil {
				if _, err := o.Source.CheckExpiry(ctx, o.roomID); err != nil && ctx.Err() == nil {
					o.Logger.WithError(err).WithField("roomID", o.roomID).Warn("expiry check failed")
				}
			}
		}
		if err := o.render(ctx); err != nil {
			return err
		}
	}
}

// follow resolves the active room and moves the subscription to it.
func (o *Observer) follow(ctx context.Context) {
	roomID := uuid.Nil
	if room, err := o.Source.ActiveRoom(ctx); err == nil {
		roomID = room.ID
	} else if !errors.Is(err, arena.ErrNotFound) {
		o.Logger.WithError(err).Warn("observer: resolve active room failed")
	}
	if o.sub != nil && roomID == o.roomID {
		return
	}
	if o.sub != nil {
		o.sub.Close()
	}
	o.roomID = roomID
	o.sub = o.Hub.Subscribe(roomID)
}

func (o *Observer) render(ctx context.Context) error {
	view, err := o.project(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		o.Logger.WithError(err).WithField("role", o.Role).Warn("observer: projection failed")
		return nil
	}
	b, err := json.Marshal(view)
	if err != nil {
		return err
	}
	if bytes.Equal(b, o.last) {
		return nil
	}
	if err := o.Emit(ctx, view); err != nil {
		return err
	}
	o.last = b
	return nil
}

func (o *Observer) project(ctx context.Context) (interface{}, error) {
	var snap *arena.Snapshot
	if o.roomID != uuid.Nil {
		var err error
		if snap, err = o.Source.Snapshot(ctx, o.roomID); err != nil {
			return nil, err
		}
	}

	switch o.Role {
	case RoleAdmin:
		gifts, err := o.Source.AvailableGifts(ctx)
		if err != nil {
			return nil, err
		}
		questions := []models.Question{}
		if snap != nil {
			if questions, err = o.Source.AvailableQuestions(ctx, snap.Room.ID); err != nil {
				return nil, err
			}
		}
		return ProjectAdmin(snap, gifts, questions), nil
	case RolePlayer:
		pseudo, err := o.Source.Pseudo(ctx, o.PlayerID)
		if err != nil {
			return nil, err
		}
		return ProjectPlayer(snap, o.PlayerID, pseudo), nil
	default:
		return ProjectScreen(snap), nil
	}
}
