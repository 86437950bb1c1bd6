package models

import "github.com/google/uuid"

// Profile is a player's public identity: the pseudo shown on the screen and
// the avatar they claimed, if any.
type Profile struct {
	ID       uuid.UUID  `json:"id"`
	Pseudo   string     `json:"pseudo"`
	AvatarID *uuid.UUID `json:"avatar_id,omitempty"`

	IsEphemeral bool `json:"is_ephemeral"`
}

// DefaultPseudo is displayed for players that never picked one.
const DefaultPseudo = "Joueur"

// DisplayName returns the pseudo or DefaultPseudo when it is blank.
func (p *Profile) DisplayName() string {
	if p == nil || p.Pseudo == "" {
		return DefaultPseudo
	}
	return p.Pseudo
}
