package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/models"
)

// InsertActions persists one historian batch in a single transaction.
func (s *Store) InsertActions(ctx context.Context, recs []models.ActionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			payload, err := json.Marshal(rec.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s: %w", rec.Kind, err)
			}
			batch.Queue(`
			INSERT INTO arena_actions (kind, room_id, round_id, player_id, payload, at)
			VALUES ($1, NULLIF($2, '00000000-0000-0000-0000-000000000000'::uuid), $3, $4, $5, $6)
			`, rec.Kind, rec.RoomID, rec.RoundID, rec.PlayerID, payload, rec.At)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// PurgeActions deletes action rows recorded before cutoff.
func (s *Store) PurgeActions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM arena_actions WHERE at < $1`, cutoff)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}
