package database

import (
	"context"

	"github.com/jason-s-yu/arena/internal/models"
)

// PutQuestion upserts a question by id.
func (s *Store) PutQuestion(ctx context.Context, qu models.Question) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO game_questions (id, prompt, options, correct_index, time_limit)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		prompt = EXCLUDED.prompt,
		options = EXCLUDED.options,
		correct_index = EXCLUDED.correct_index,
		time_limit = EXCLUDED.time_limit
	`, qu.ID, qu.Prompt, qu.Options, qu.CorrectIndex, qu.TimeLimitSec)
	return classify(err)
}

// PutGift upserts gift content. The winner is never overwritten.
func (s *Store) PutGift(ctx context.Context, g models.Gift) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO gifts (id, owner_id, title, description, image_url)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		image_url = EXCLUDED.image_url
	`, g.ID, g.OwnerID, g.Title, g.Description, g.ImageURL)
	return classify(err)
}

// PutAvatar upserts an avatar slot. The claim is never overwritten.
func (s *Store) PutAvatar(ctx context.Context, a models.Avatar) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO avatars (id, name, image_url) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, image_url = EXCLUDED.image_url
	`, a.ID, a.Name, a.ImageURL)
	return classify(err)
}

// PutProfile upserts the pseudo. The avatar is only set through a claim.
func (s *Store) PutProfile(ctx context.Context, p models.Profile) error {
	_, err := s.pool.Exec(ctx, `
	INSERT INTO profiles (id, pseudo, is_ephemeral) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET pseudo = EXCLUDED.pseudo
	`, p.ID, p.Pseudo, p.IsEphemeral)
	return classify(err)
}
