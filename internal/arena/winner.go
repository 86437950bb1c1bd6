package arena

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
)

// DecideWinner applies first-correct-wins: among answers matching the
// question's correct index, the earliest server timestamp wins. Identical
// timestamps are broken by the lowest player id (byte order, which matches
// the canonical string order). It returns nil when no answer is correct.
func DecideWinner(q *models.Question, answers []models.Answer) *uuid.UUID {
	var best *models.Answer
	for i := range answers {
		a := &answers[i]
		if a.OptionIndex != q.CorrectIndex {
			continue
		}
		if best == nil || earlier(a, best) {
			best = a
		}
	}
	if best == nil {
		return nil
	}
	id := best.PlayerID
	return &id
}

func earlier(a, b *models.Answer) bool {
	if !a.AnsweredAt.Equal(b.AnsweredAt) {
		return a.AnsweredAt.Before(b.AnsweredAt)
	}
	return bytes.Compare(a.PlayerID[:], b.PlayerID[:]) < 0
}
