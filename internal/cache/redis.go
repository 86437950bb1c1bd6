// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/arena/internal/models"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for arena action records.
const DefaultQueueName = "arena_actions"

// ConnectRedis initializes the global Redis client and pings it.
func ConnectRedis(ctx context.Context, addr, password string, db int) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// ActionQueue pushes action records onto a Redis list for the historian.
type ActionQueue struct {
	rdb   *redis.Client
	queue string
}

func NewActionQueue(rdb *redis.Client, queue string) *ActionQueue {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionQueue{rdb: rdb, queue: queue}
}

// Record serializes rec to JSON and RPUSHes it. This does not block the
// calling logic beyond one network round trip.
func (q *ActionQueue) Record(ctx context.Context, rec models.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns (nil, nil) when
// the queue stayed empty.
func (q *ActionQueue) Pop(ctx context.Context, timeout time.Duration) (*models.ActionRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var rec models.ActionRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid action record: %w", err)
	}
	return &rec, nil
}
