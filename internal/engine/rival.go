package engine

import (
	"strings"

	"github.com/pefman/ai-fight-club/internal/models"
)

var difficultyMod = map[string]int{
	"easy":   -5,
	"medium": 0,
	"hard":   5,
}

// PickRival chooses the session's opponent. Rivals with an affinity for the
// focus area are preferred; the seed makes the choice stable for a session.
func PickRival(rivals []models.Rival, focusID string, seed int64) *models.Rival {
	if len(rivals) == 0 {
		return nil
	}
	pool := make([]models.Rival, 0, len(rivals))
	for _, rv := range rivals {
		for _, f := range rv.Affinity {
			if strings.EqualFold(f, focusID) {
				pool = append(pool, rv)
				break
			}
		}
	}
	if len(pool) == 0 {
		pool = rivals
	}
	r := NewRNG(seed)
	picked := pool[r.Intn(len(pool))]
	return &picked
}

// RivalScore rolls the rival's score for a round. Harder challenges push the
// rival up a little, easy ones pull it down.
func RivalScore(rv *models.Rival, seed int64, round int, difficulty string) int {
	if rv == nil {
		return 0
	}
	r := RoundRNG(seed, round)
	return Clamp(0, 100, RollRange(r, rv.ScoreRange)+difficultyMod[difficulty])
}

// Taunt picks a canned taunt line. Used when the AI backend can't write one.
func Taunt(rv *models.Rival, seed int64, round int, outcome models.Outcome) string {
	if rv == nil {
		return ""
	}
	if len(rv.Taunts) > 0 {
		r := RoundRNG(seed, round+100)
		return rv.Taunts[r.Intn(len(rv.Taunts))]
	}
	switch outcome {
	case models.OutcomeWin:
		return rv.Name + " grumbles: lucky round."
	case models.OutcomeLoss:
		return rv.Name + " smirks: better luck next round."
	default:
		return rv.Name + " nods: dead even."
	}
}

// Compare decides a round from the player's point of view.
func Compare(player, rival int) models.Outcome {
	switch {
	case player > rival:
		return models.OutcomeWin
	case player < rival:
		return models.OutcomeLoss
	default:
		return models.OutcomeDraw
	}
}
