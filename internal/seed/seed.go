// Package seed loads questions, gifts, avatars and profiles from a YAML file
// into a store.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultTimeLimit applies to questions that omit time_limit.
const DefaultTimeLimit = 20

// namespace derives stable ids for entries without one, so re-running a seed
// file updates rows instead of duplicating them.
var namespace = uuid.MustParse("6f1c1c2e-5b9a-4b8e-9d0a-2f61a3c8e7d4")

// Writer is implemented by store.Memory and database.Store.
type Writer interface {
	PutQuestion(ctx context.Context, q models.Question) error
	PutGift(ctx context.Context, g models.Gift) error
	PutAvatar(ctx context.Context, a models.Avatar) error
	PutProfile(ctx context.Context, p models.Profile) error
}

type File struct {
	Profiles  []Profile  `yaml:"profiles"`
	Avatars   []Avatar   `yaml:"avatars"`
	Gifts     []Gift     `yaml:"gifts"`
	Questions []Question `yaml:"questions"`
}

type Profile struct {
	ID     string `yaml:"id"`
	Pseudo string `yaml:"pseudo"`
}

type Avatar struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	ImageURL string `yaml:"image_url"`
}

// Gift.Owner names a profile by pseudo or id.
type Gift struct {
	ID          string `yaml:"id"`
	Owner       string `yaml:"owner"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	ImageURL    string `yaml:"image_url"`
}

type Question struct {
	ID        string   `yaml:"id"`
	Prompt    string   `yaml:"prompt"`
	Options   []string `yaml:"options"`
	Correct   int      `yaml:"correct"`
	TimeLimit int      `yaml:"time_limit"`
}

// Data is a validated seed file with every id resolved.
type Data struct {
	Profiles  []models.Profile
	Avatars   []models.Avatar
	Gifts     []models.Gift
	Questions []models.Question
}

// Load reads and validates the seed file at path.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return f.Resolve()
}

func stableID(explicit, kind, key string) (uuid.UUID, error) {
	if explicit != "" {
		return uuid.Parse(explicit)
	}
	if key == "" {
		return uuid.Nil, fmt.Errorf("%s needs an id or a name", kind)
	}
	return uuid.NewSHA1(namespace, []byte(kind+":"+key)), nil
}

// Resolve validates f and assigns ids.
func (f *File) Resolve() (*Data, error) {
	d := &Data{}
	byPseudo := map[string]uuid.UUID{}

	for _, p := range f.Profiles {
		id, err := stableID(p.ID, "profile", p.Pseudo)
		if err != nil {
			return nil, err
		}
		if p.Pseudo != "" {
			byPseudo[p.Pseudo] = id
		}
		d.Profiles = append(d.Profiles, models.Profile{ID: id, Pseudo: p.Pseudo})
	}

	for _, a := range f.Avatars {
		id, err := stableID(a.ID, "avatar", a.Name)
		if err != nil {
			return nil, err
		}
		d.Avatars = append(d.Avatars, models.Avatar{ID: id, Name: a.Name, ImageURL: a.ImageURL})
	}

	for _, g := range f.Gifts {
		id, err := stableID(g.ID, "gift", g.Title)
		if err != nil {
			return nil, err
		}
		owner, ok := byPseudo[g.Owner]
		if !ok {
			if owner, err = uuid.Parse(g.Owner); err != nil {
				return nil, fmt.Errorf("gift %q: unknown owner %q", g.Title, g.Owner)
			}
		}
		d.Gifts = append(d.Gifts, models.Gift{
			ID:          id,
			OwnerID:     owner,
			Title:       g.Title,
			Description: g.Description,
			ImageURL:    g.ImageURL,
		})
	}

	for _, q := range f.Questions {
		id, err := stableID(q.ID, "question", q.Prompt)
		if err != nil {
			return nil, err
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %q: needs at least two options", q.Prompt)
		}
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return nil, fmt.Errorf("question %q: correct index %d out of range", q.Prompt, q.Correct)
		}
		limit := q.TimeLimit
		if limit == 0 {
			limit = DefaultTimeLimit
		}
		if limit < 0 {
			return nil, fmt.Errorf("question %q: negative time limit", q.Prompt)
		}
		d.Questions = append(d.Questions, models.Question{
			ID:           id,
			Prompt:       q.Prompt,
			Options:      q.Options,
			CorrectIndex: q.Correct,
			TimeLimitSec: limit,
		})
	}
	return d, nil
}

// Counts summarizes what Apply wrote.
type Counts struct {
	Profiles, Avatars, Gifts, Questions int
}

// Apply upserts everything in d. Profiles go first so gift owners exist.
func Apply(ctx context.Context, w Writer, d *Data) (Counts, error) {
	var c Counts
	for _, p := range d.Profiles {
		if err := w.PutProfile(ctx, p); err != nil {
			return c, fmt.Errorf("profile %s: %w", p.Pseudo, err)
		}
		c.Profiles++
	}
	for _, a := range d.Avatars {
		if err := w.PutAvatar(ctx, a); err != nil {
			return c, fmt.Errorf("avatar %s: %w", a.Name, err)
		}
		c.Avatars++
	}
	for _, g := range d.Gifts {
		if err := w.PutGift(ctx, g); err != nil {
			return c, fmt.Errorf("gift %s: %w", g.Title, err)
		}
		c.Gifts++
	}
	for _, q := range d.Questions {
		if err := w.PutQuestion(ctx, q); err != nil {
			return c, fmt.Errorf("question %s: %w", q.ID, err)
		}
		c.Questions++
	}
	return c, nil
}
