// internal/feed/postgres.go
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// DefaultNotifyChannel is the LISTEN/NOTIFY channel for feed events.
const DefaultNotifyChannel = "arena_changes"

// PostgresRelay carries events through pg_notify, so the store that commits a
// change is also the one that fans it out.
type PostgresRelay struct {
	pool    *pgxpool.Pool
	channel string
	logger  *logrus.Logger
	backoff time.Duration
}

func NewPostgresRelay(pool *pgxpool.Pool, channel string, logger *logrus.Logger) *PostgresRelay {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PostgresRelay{pool: pool, channel: channel, logger: logger, backoff: 2 * time.Second}
}

func (p *PostgresRelay) Publish(ctx context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, string(data)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", ev.Table, err)
	}
	return nil
}

// Run holds one pooled connection in LISTEN and reconnects after failures.
func (p *PostgresRelay) Run(ctx context.Context, sink Publisher) error {
	for {
		err := p.listen(ctx, sink)
		if ctx.Err() != nil {
			return nil
		}
		p.logger.WithError(err).Warn("feed listener lost, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.backoff):
		}
	}
}

func (p *PostgresRelay) listen(ctx context.Context, sink Publisher) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{p.channel}.Sanitize()); err != nil {
		return err
	}
	p.logger.WithField("channel", p.channel).Info("feed relay listening on postgres")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := Decode([]byte(n.Payload))
		if err != nil {
			p.logger.WithError(err).Warn("dropping malformed feed notification")
			continue
		}
		_ = sink.Publish(ctx, ev)
	}
}

func (p *PostgresRelay) Close() error { return nil }
