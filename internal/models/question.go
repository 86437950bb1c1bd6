// internal/models/question.go
package models

import "github.com/google/uuid"

// Question is a multiple-choice trivia question. CorrectIndex is zero-based.
type Question struct {
	ID           uuid.UUID `json:"id"`
	Prompt       string    `json:"prompt"`
	Options      []string  `json:"options"`
	CorrectIndex int       `json:"correct_index"`
	TimeLimitSec int       `json:"time_limit"`
}

// ValidOption reports whether idx addresses one of the question's options.
func (q *Question) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(q.Options)
}

// PublicQuestion is what players and the screen see: no correct index.
type PublicQuestion struct {
	ID           uuid.UUID `json:"id"`
	Prompt       string    `json:"prompt"`
	Options      []string  `json:"options"`
	TimeLimitSec int       `json:"time_limit"`
}

func (q *Question) Public() *PublicQuestion {
	return &PublicQuestion{
		ID:           q.ID,
		Prompt:       q.Prompt,
		Options:      append([]string(nil), q.Options...),
		TimeLimitSec: q.TimeLimitSec,
	}
}
