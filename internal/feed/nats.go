// internal/feed/nats.go
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	natsRoomSubject    = "arena.room.%s"
	natsSessionSubject = "arena.session"
	natsWildcard       = "arena.>"
)

// NATSRelay carries events over core NATS subjects arena.room.<id>.
type NATSRelay struct {
	nc     *nats.Conn
	logger *logrus.Logger
}

// DialNATS connects with reconnect handling logged through logger.
func DialNATS(url string, logger *logrus.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return nats.Connect(url,
		nats.Name("arena-feed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("reconnected to NATS")
		}),
		nats.Timeout(10*time.Second),
	)
}

func NewNATSRelay(nc *nats.Conn, logger *logrus.Logger) *NATSRelay {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NATSRelay{nc: nc, logger: logger}
}

func subject(ev Event) string {
	if ev.Broadcast() {
		return natsSessionSubject
	}
	return fmt.Sprintf(natsRoomSubject, ev.RoomID)
}

func (n *NATSRelay) Publish(_ context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := n.nc.Publish(subject(ev), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", ev.Table, err)
	}
	return nil
}

func (n *NATSRelay) Run(ctx context.Context, sink Publisher) error {
	sub, err := n.nc.Subscribe(natsWildcard, func(msg *nats.Msg) {
		ev, err := Decode(msg.Data)
		if err != nil {
			n.logger.WithError(err).WithField("subject", msg.Subject).Warn("dropping malformed feed message")
			return
		}
		_ = sink.Publish(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	n.logger.Info("feed relay subscribed to nats")

	<-ctx.Done()
	return sub.Unsubscribe()
}

func (n *NATSRelay) Close() error {
	return n.nc.Drain()
}
