package badges

import (
	"time"

	"github.com/pefman/ai-fight-club/internal/models"
)

type rule struct {
	badge models.Badge
	earn  func(s *models.Session) bool
}

var rules = []rule{
	{
		badge: models.Badge{ID: "first-blood", Name: "First Blood", Description: "Won the first round."},
		earn:  func(s *models.Session) bool { return outcome(s, 1) == models.OutcomeWin },
	},
	{
		badge: models.Badge{ID: "triple-threat", Name: "Triple Threat", Description: "Won all three rounds."},
		earn: func(s *models.Session) bool {
			return outcome(s, 1) == models.OutcomeWin && outcome(s, 2) == models.OutcomeWin && outcome(s, 3) == models.OutcomeWin
		},
	},
	{
		badge: models.Badge{ID: "comeback", Name: "Comeback Kid", Description: "Lost the first round but won the last."},
		earn: func(s *models.Session) bool {
			return outcome(s, 1) == models.OutcomeLoss && outcome(s, 3) == models.OutcomeWin
		},
	},
	{
		badge: models.Badge{ID: "speed-demon", Name: "Speed Demon", Description: "Scored 60+ using under a quarter of the time limit."},
		earn: func(s *models.Session) bool {
			for _, r := range s.Rounds {
				if !r.Submitted() || r.Challenge == nil || r.TimedOut {
					continue
				}
				if r.FinalScore >= 60 && r.Submission.Elapsed*4 <= float64(r.Challenge.TimeLimit) {
					return true
				}
			}
			return false
		},
	},
	{
		badge: models.Badge{ID: "perfectionist", Name: "Perfectionist", Description: "Scored 90 or more in a round."},
		earn: func(s *models.Session) bool {
			for _, r := range s.Rounds {
				if r.Submitted() && r.FinalScore >= 90 {
					return true
				}
			}
			return false
		},
	},
	{
		badge: models.Badge{ID: "self-aware", Name: "Self-Aware", Description: "Completed the trait and attitude assessments."},
		earn:  func(s *models.Session) bool { return s.Progress.TraitsDone && s.Progress.AttitudesDone },
	},
	{
		badge: models.Badge{ID: "rival-slayer", Name: "Rival Slayer", Description: "Beat an elite rival at least twice."},
		earn: func(s *models.Session) bool {
			if s.Rival == nil || s.Rival.Tier != "elite" {
				return false
			}
			wins := 0
			for i := 1; i <= models.Rounds; i++ {
				if outcome(s, i) == models.OutcomeWin {
					wins++
				}
			}
			return wins >= 2
		},
	},
}

func outcome(s *models.Session, n int) models.Outcome {
	r := s.Round(n)
	if !r.Submitted() {
		return ""
	}
	return r.Outcome
}

// Catalog lists every badge that can be earned.
func Catalog() []models.Badge {
	out := make([]models.Badge, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.badge)
	}
	return out
}

// Award evaluates all rules against a finished session, in catalog order.
func Award(s *models.Session, at time.Time) []models.Badge {
	out := []models.Badge{}
	for _, r := range rules {
		if r.earn(s) {
			b := r.badge
			b.AwardedAt = at
			out = append(out, b)
		}
	}
	return out
}

// Names returns badge display names, for prompts.
func Names(bs []models.Badge) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Name)
	}
	return out
}
