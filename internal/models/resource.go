// internal/models/resource.go
package models

import "github.com/google/uuid"

// Gift is a prize deposited by OwnerID. WinnerID is set at most once.
type Gift struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	WinnerID    *uuid.UUID `json:"winner_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
}

func (g *Gift) Available() bool {
	return g.WinnerID == nil
}

// Avatar is a cosmetic identity slot, claimed at most once.
type Avatar struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	ImageURL  string     `json:"image_url,omitempty"`
	ClaimedBy *uuid.UUID `json:"claimed_by,omitempty"`
}

func (a *Avatar) Available() bool {
	return a.ClaimedBy == nil
}
