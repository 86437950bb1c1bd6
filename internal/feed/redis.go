// internal/feed/redis.go
package feed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultRedisPrefix namespaces feed channels: <prefix>:room:<id> and <prefix>:session.
const DefaultRedisPrefix = "arena"

// RedisRelay carries events over Redis pub/sub so every server instance's hub
// sees every committed change.
type RedisRelay struct {
	rdb    *redis.Client
	prefix string
	logger *logrus.Logger
}

func NewRedisRelay(rdb *redis.Client, prefix string, logger *logrus.Logger) *RedisRelay {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisRelay{rdb: rdb, prefix: prefix, logger: logger}
}

func (r *RedisRelay) channel(ev Event) string {
	if ev.Broadcast() {
		return r.prefix + ":session"
	}
	return fmt.Sprintf("%s:room:%s", r.prefix, ev.RoomID)
}

func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel(ev), data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Table, err)
	}
	return nil
}

func (r *RedisRelay) Run(ctx context.Context, sink Publisher) error {
	ps := r.rdb.PSubscribe(ctx, r.prefix+":room:*", r.prefix+":session")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	r.logger.WithField("prefix", r.prefix).Info("feed relay subscribed to redis")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := Decode([]byte(msg.Payload))
			if err != nil {
				r.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed feed message")
				continue
			}
			_ = sink.Publish(ctx, ev)
		}
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (r *RedisRelay) Close() error { return nil }
