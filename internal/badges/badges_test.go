package badges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pefman/ai-fight-club/internal/models"
)

func round(n int, outcome models.Outcome, score int, elapsed float64) *models.RoundState {
	return &models.RoundState{
		Round:      n,
		Challenge:  &models.Challenge{TimeLimit: 200},
		StartedAt:  time.Now(),
		Submission: &models.Submission{Elapsed: elapsed},
		FinalScore: score,
		Outcome:    outcome,
	}
}

func ids(bs []models.Badge) []string {
	out := []string{}
	for _, b := range bs {
		out = append(out, b.ID)
	}
	return out
}

func TestAward(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		s    *models.Session
		want []string
	}{
		{
			name: "clean sweep vs elite",
			s: &models.Session{
				Progress: models.Progress{TraitsDone: true, AttitudesDone: true},
				Rival:    &models.Rival{Tier: "elite"},
				Rounds: [models.Rounds]*models.RoundState{
					round(1, models.OutcomeWin, 70, 100),
					round(2, models.OutcomeWin, 92, 100),
					round(3, models.OutcomeWin, 65, 40),
				},
			},
			want: []string{"first-blood", "triple-threat", "speed-demon", "perfectionist", "self-aware", "rival-slayer"},
		},
		{
			name: "comeback",
			s: &models.Session{
				Rival: &models.Rival{Tier: "rookie"},
				Rounds: [models.Rounds]*models.RoundState{
					round(1, models.OutcomeLoss, 40, 100),
					round(2, models.OutcomeDraw, 50, 100),
					round(3, models.OutcomeWin, 80, 150),
				},
			},
			want: []string{"comeback"},
		},
		{
			name: "nothing played",
			s:    &models.Session{},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Award(tt.s, at)
			assert.Equal(t, tt.want, ids(got))
			for _, b := range got {
				assert.Equal(t, at, b.AwardedAt)
			}
		})
	}
}

func TestSpeedDemonIgnoresTimedOut(t *testing.T) {
	r := round(1, models.OutcomeWin, 80, 10)
	r.TimedOut = true
	s := &models.Session{Rounds: [models.Rounds]*models.RoundState{r}}
	assert.NotContains(t, ids(Award(s, time.Now())), "speed-demon")
}

func TestCatalog(t *testing.T) {
	c := Catalog()
	assert.Len(t, c, 7)
	assert.Equal(t, []string{"First Blood", "Triple Threat"}, Names(c[:2]))
}
