package arena_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/arena"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answerAt(player uuid.UUID, option int, sec int) models.Answer {
	return models.Answer{
		ID:          uuid.New(),
		PlayerID:    player,
		OptionIndex: option,
		AnsweredAt:  epoch.Add(time.Duration(sec) * time.Second),
	}
}

func TestDecideWinnerFirstCorrectWins(t *testing.T) {
	q := &models.Question{Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2}
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	winner := arena.DecideWinner(q, []models.Answer{
		answerAt(a, 2, 5),
		answerAt(b, 2, 3),
		answerAt(c, 0, 1),
	})
	require.NotNil(t, winner)
	assert.Equal(t, b, *winner, "earliest correct answer wins, not earliest answer")
}

func TestDecideWinnerNoCorrectAnswer(t *testing.T) {
	q := &models.Question{Options: []string{"a", "b"}, CorrectIndex: 1}
	assert.Nil(t, arena.DecideWinner(q, nil))
	assert.Nil(t, arena.DecideWinner(q, []models.Answer{answerAt(uuid.New(), 0, 1), answerAt(uuid.New(), 0, 2)}))
}

func TestDecideWinnerTieBreaksOnLowestPlayerID(t *testing.T) {
	q := &models.Question{Options: []string{"a", "b"}, CorrectIndex: 1}
	low := uuid.MustParse("0a000000-0000-4000-8000-000000000000")
	high := uuid.MustParse("f0000000-0000-4000-8000-000000000000")

	for _, answers := range [][]models.Answer{
		{answerAt(high, 1, 4), answerAt(low, 1, 4)},
		{answerAt(low, 1, 4), answerAt(high, 1, 4)},
	} {
		winner := arena.DecideWinner(q, answers)
		require.NotNil(t, winner)
		assert.Equal(t, low, *winner)
	}
}
