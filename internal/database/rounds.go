package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/models"
)

const roundColumns = `id, room_id, question_id, gift_id, status, winner_id, time_limit, started_at, ended_at`

func scanRound(row pgx.Row) (*models.Round, error) {
	var (
		r      models.Round
		status string
	)
	err := row.Scan(&r.ID, &r.RoomID, &r.QuestionID, &r.GiftID, &status,
		&r.WinnerID, &r.TimeLimitSec, &r.StartedAt, &r.EndedAt)
	if err != nil {
		return nil, classify(err)
	}
	r.Status = models.RoundStatus(status)
	return &r, nil
}

func (q *queries) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return scanRound(q.db.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE id = $1`, id))
}

func (q *queries) LockRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return scanRound(q.db.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE id = $1 FOR UPDATE`, id))
}

func (q *queries) InsertRound(ctx context.Context, r *models.Round) error {
	_, err := q.db.Exec(ctx, `
	INSERT INTO game_rounds (`+roundColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.RoomID, r.QuestionID, r.GiftID, string(r.Status),
		r.WinnerID, r.TimeLimitSec, r.StartedAt, r.EndedAt)
	return classify(err)
}

func (q *queries) FinishRound(ctx context.Context, r *models.Round) (bool, error) {
	tag, err := q.db.Exec(ctx, `
	UPDATE game_rounds SET status = 'finished', winner_id = $2, ended_at = $3
	WHERE id = $1 AND status = 'active'
	`, r.ID, r.WinnerID, r.EndedAt)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

const questionColumns = `id, prompt, options, correct_index, time_limit`

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var qu models.Question
	if err := row.Scan(&qu.ID, &qu.Prompt, &qu.Options, &qu.CorrectIndex, &qu.TimeLimitSec); err != nil {
		return nil, classify(err)
	}
	return &qu, nil
}

func (q *queries) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return scanQuestion(q.db.QueryRow(ctx, `SELECT `+questionColumns+` FROM game_questions WHERE id = $1`, id))
}

func (q *queries) ListUnusedQuestions(ctx context.Context, roomID uuid.UUID) ([]models.Question, error) {
	rows, err := q.db.Query(ctx, `
	SELECT `+questionColumns+`
	FROM game_questions gq
	WHERE NOT EXISTS (
		SELECT 1 FROM game_question_usage u
		WHERE u.room_id = $1 AND u.question_id = gq.id
	)
	ORDER BY created_at, id
	`, roomID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []models.Question{}
	for rows.Next() {
		qu, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *qu)
	}
	return out, classify(rows.Err())
}

func (q *queries) UseQuestion(ctx context.Context, roomID, questionID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
	INSERT INTO game_question_usage (room_id, question_id) VALUES ($1, $2)
	ON CONFLICT (room_id, question_id) DO NOTHING
	`, roomID, questionID)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) ListAnswers(ctx context.Context, roundID uuid.UUID) ([]models.Answer, error) {
	rows, err := q.db.Query(ctx, `
	SELECT id, round_id, player_id, option_index, answered_at
	FROM game_answers
	WHERE round_id = $1
	ORDER BY answered_at, player_id
	`, roundID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []models.Answer{}
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.RoundID, &a.PlayerID, &a.OptionIndex, &a.AnsweredAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, a)
	}
	return out, classify(rows.Err())
}

func (q *queries) InsertAnswer(ctx context.Context, a *models.Answer) (bool, error) {
	tag, err := q.db.Exec(ctx, `
	INSERT INTO game_answers (id, round_id, player_id, option_index, answered_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (round_id, player_id) DO NOTHING
	`, a.ID, a.RoundID, a.PlayerID, a.OptionIndex, a.AnsweredAt)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}
