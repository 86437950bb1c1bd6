package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/arena/internal/models"
)

const giftColumns = `id, owner_id, winner_id, title, description, image_url`

func scanGift(row pgx.Row) (*models.Gift, error) {
	var g models.Gift
	if err := row.Scan(&g.ID, &g.OwnerID, &g.WinnerID, &g.Title, &g.Description, &g.ImageURL); err != nil {
		return nil, classify(err)
	}
	return &g, nil
}

func (q *queries) GetGift(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	return scanGift(q.db.QueryRow(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1`, id))
}

func (q *queries) ListAvailableGifts(ctx context.Context) ([]models.Gift, error) {
	rows, err := q.db.Query(ctx, `
	SELECT `+giftColumns+` FROM gifts WHERE winner_id IS NULL ORDER BY created_at, id
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []models.Gift{}
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, classify(rows.Err())
}

// ClaimGift sets the winner only while none is recorded.
func (q *queries) ClaimGift(ctx context.Context, giftID, playerID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
	UPDATE gifts SET winner_id = $2 WHERE id = $1 AND winner_id IS NULL
	`, giftID, playerID)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

const avatarColumns = `id, name, image_url, claimed_by`

func scanAvatar(row pgx.Row) (*models.Avatar, error) {
	var a models.Avatar
	if err := row.Scan(&a.ID, &a.Name, &a.ImageURL, &a.ClaimedBy); err != nil {
		return nil, classify(err)
	}
	return &a, nil
}

func (q *queries) GetAvatar(ctx context.Context, id uuid.UUID) (*models.Avatar, error) {
	return scanAvatar(q.db.QueryRow(ctx, `SELECT `+avatarColumns+` FROM avatars WHERE id = $1`, id))
}

func (q *queries) ListAvatars(ctx context.Context) ([]models.Avatar, error) {
	rows, err := q.db.Query(ctx, `SELECT `+avatarColumns+` FROM avatars ORDER BY sort_order`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []models.Avatar{}
	for rows.Next() {
		a, err := scanAvatar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, classify(rows.Err())
}

// ClaimAvatar sets claimed_by only while the avatar is free.
func (q *queries) ClaimAvatar(ctx context.Context, avatarID, playerID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
	UPDATE avatars SET claimed_by = $2 WHERE id = $1 AND claimed_by IS NULL
	`, avatarID, playerID)
	if err != nil {
		return false, classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *queries) GetProfile(ctx context.Context, playerID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := q.db.QueryRow(ctx, `
	SELECT id, pseudo, avatar_id, is_ephemeral FROM profiles WHERE id = $1
	`, playerID).Scan(&p.ID, &p.Pseudo, &p.AvatarID, &p.IsEphemeral)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

// LockProfile inserts a blank profile if needed so FOR UPDATE always has a
// row to hold; concurrent claims by one player then serialize on it.
func (q *queries) LockProfile(ctx context.Context, playerID uuid.UUID) (*models.Profile, error) {
	if _, err := q.db.Exec(ctx, `
	INSERT INTO profiles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING
	`, playerID); err != nil {
		return nil, classify(err)
	}
	var p models.Profile
	err := q.db.QueryRow(ctx, `
	SELECT id, pseudo, avatar_id, is_ephemeral FROM profiles WHERE id = $1 FOR UPDATE
	`, playerID).Scan(&p.ID, &p.Pseudo, &p.AvatarID, &p.IsEphemeral)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (q *queries) SetProfileAvatar(ctx context.Context, playerID, avatarID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
	INSERT INTO profiles (id, avatar_id) VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET avatar_id = EXCLUDED.avatar_id
	`, playerID, avatarID)
	return classify(err)
}
