package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/models"
)

func (q *queries) ActiveRoomID(ctx context.Context) (uuid.UUID, error) {
	var id *uuid.UUID
	err := q.db.QueryRow(ctx, `SELECT active_room_id FROM arena_session WHERE id = 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && id == nil) {
		return uuid.Nil, arena.ErrNoActiveRoom
	}
	if err != nil {
		return uuid.Nil, classify(err)
	}
	return *id, nil
}

func (q *queries) SetActiveRoom(ctx context.Context, roomID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
	INSERT INTO arena_session (id, active_room_id, updated_at)
	VALUES (1, $1, now())
	ON CONFLICT (id) DO UPDATE
	SET active_room_id = EXCLUDED.active_room_id, updated_at = now()
	`, roomID)
	return classify(err)
}

const roomColumns = `id, status, current_round_id, created_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var (
		r      models.Room
		status string
	)
	if err := row.Scan(&r.ID, &status, &r.CurrentRoundID, &r.CreatedAt); err != nil {
		return nil, classify(err)
	}
	r.Status = models.RoomStatus(status)
	return &r, nil
}

func (q *queries) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return scanRoom(q.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM game_rooms WHERE id = $1`, id))
}

func (q *queries) LockRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return scanRoom(q.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM game_rooms WHERE id = $1 FOR UPDATE`, id))
}

func (q *queries) InsertRoom(ctx context.Context, room *models.Room) error {
	_, err := q.db.Exec(ctx, `
	INSERT INTO game_rooms (id, status, current_round_id, created_at)
	VALUES ($1, $2, $3, $4)
	`, room.ID, string(room.Status), room.CurrentRoundID, room.CreatedAt)
	return classify(err)
}

func (q *queries) UpdateRoom(ctx context.Context, roomID uuid.UUID, status models.RoomStatus, currentRound *uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `
	UPDATE game_rooms SET status = $2, current_round_id = $3 WHERE id = $1
	`, roomID, string(status), currentRound)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", roomID, arena.ErrNotFound)
	}
	return nil
}

func (q *queries) GetParticipant(ctx context.Context, roomID, playerID uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	err := q.db.QueryRow(ctx, `
	SELECT room_id, player_id, has_won_gift, joined_at
	FROM game_participants
	WHERE room_id = $1 AND player_id = $2
	`, roomID, playerID).Scan(&p.RoomID, &p.PlayerID, &p.HasWonGift, &p.JoinedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (q *queries) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.Participant, error) {
	rows, err := q.db.Query(ctx, `
	SELECT room_id, player_id, has_won_gift, joined_at
	FROM game_participants
	WHERE room_id = $1
	ORDER BY joined_at, player_id
	`, roomID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.RoomID, &p.PlayerID, &p.HasWonGift, &p.JoinedAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

func (q *queries) InsertParticipant(ctx context.Context, p *models.Participant) (bool, error) {
	tag, err := q.db.Exec(ctx, `
	INSERT INTO game_participants (room_id, player_id, has_won_gift, joined_at)
	VALUES ($1, $2, false, $3)
	ON CONFLICT (room_id, player_id) DO NOTHING
	`, p.RoomID, p.PlayerID, p.JoinedAt)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) MarkParticipantWon(ctx context.Context, roomID, playerID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
	UPDATE game_participants SET has_won_gift = true
	WHERE room_id = $1 AND player_id = $2 AND NOT has_won_gift
	`, roomID, playerID)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}
