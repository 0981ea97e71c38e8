package engine

import (
	"fmt"
	"time"

	"github.com/pefman/ai-fight-club/internal/models"
)

var (
	mockFirst = []string{"Ada", "Grace", "Alan", "Linus", "Margaret", "Ken", "Barbara", "Dennis", "Radia", "Edsger", "Frances", "John"}
	mockLast  = []string{"Circuit", "Prompt", "Vector", "Tensor", "Kernel", "Token", "Neuron", "Gradient"}
)

// MockLeaderboard produces n plausible demo entries. The same seed always
// yields the same board.
func MockLeaderboard(n int, seed int64, focusIDs []string, now time.Time) []models.LeaderboardEntry {
	if n <= 0 {
		return nil
	}
	r := NewRNG(seed)
	out := make([]models.LeaderboardEntry, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s %s", mockFirst[r.Intn(len(mockFirst))], mockLast[r.Intn(len(mockLast))])
		wins := r.Intn(models.Rounds + 1)
		// three rounds of 35..95 plus the win bonus, same shape as real points
		score := 0
		for k := 0; k < models.Rounds; k++ {
			score += 35 + r.Intn(61)
		}
		score += wins * 10
		focus := ""
		if len(focusIDs) > 0 {
			focus = focusIDs[r.Intn(len(focusIDs))]
		}
		out = append(out, models.LeaderboardEntry{
			SessionID:   fmt.Sprintf("mock_%d", i+1),
			Name:        name,
			Score:       score,
			FocusID:     focus,
			Badges:      r.Intn(4),
			Wins:        wins,
			CompletedAt: now.Add(-time.Duration(r.Intn(72*60)) * time.Minute),
			Mock:        true,
		})
	}
	return out
}
