package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/pefman/ai-fight-club/internal/engine"
	"github.com/pefman/ai-fight-club/internal/models"
)

// RoundResult captures the outcome of a submitted round and the steps that led to it.
type RoundResult struct {
	Round      int                `json:"round"`
	Logs       []string           `json:"logs"`
	Evaluation *models.Evaluation `json:"evaluation"`
	Score      int                `json:"score"`
	RivalScore int                `json:"rival_score"`
	TimedOut   bool               `json:"timed_out"`
	Outcome    models.Outcome     `json:"outcome"`
	Taunt      string             `json:"taunt,omitempty"`
	NextRoute  string             `json:"next_route"`
}

// resolveRound applies an evaluation to a started round: elapsed time,
// late penalty, rival comparison. It mutates rs and returns the step log.
func resolveRound(rs *models.RoundState, response string, ev models.Evaluation, at time.Time) []string {
	logs := []string{}
	elapsed := at.Sub(rs.StartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	rs.Submission = &models.Submission{Response: response, SubmittedAt: at, Elapsed: elapsed}
	logs = append(logs, fmt.Sprintf("Answer submitted after %.0fs (limit %ds)", elapsed, rs.Challenge.TimeLimit))

	ev.Score = engine.Clamp(0, 100, ev.Score)
	rs.Evaluation = &ev
	if ev.Degraded {
		logs = append(logs, fmt.Sprintf("Judge unavailable: scored locally at %d", ev.Score))
	} else {
		logs = append(logs, fmt.Sprintf("Judge scored the answer %d", ev.Score))
	}

	rs.TimedOut = at.After(rs.Deadline)
	rs.FinalScore = engine.ApplyTimePenalty(ev.Score, rs.TimedOut)
	if rs.TimedOut {
		logs = append(logs, fmt.Sprintf("Over time: score reduced to %d", rs.FinalScore))
	}

	rs.Outcome = engine.Compare(rs.FinalScore, rs.RivalScore)
	logs = append(logs, fmt.Sprintf("You %d vs rival %d: %s", rs.FinalScore, rs.RivalScore, rs.Outcome))
	return logs
}

// ========================= Results =========================

// Archetype buckets the attitude average. Reverse items count as 100-score.
func Archetype(attitudes []models.AttitudeScore, isReverse func(id string) bool) string {
	if len(attitudes) == 0 {
		return "Unknown"
	}
	sum := 0
	for _, a := range attitudes {
		v := a.Score
		if isReverse != nil && isReverse(a.AttitudeID) {
			v = 100 - v
		}
		sum += v
	}
	avg := float64(sum) / float64(len(attitudes))
	switch {
	case avg >= 70:
		return "Enthusiast"
	case avg >= 40:
		return "Pragmatist"
	default:
		return "Skeptic"
	}
}

// TopTraits returns the ids of the n highest scored traits. Ties go to the
// trait listed first in order; ids missing from order sort after it.
func TopTraits(traits []models.TraitScore, n int, order []string) []string {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	rank := func(id string) int {
		if i, ok := pos[id]; ok {
			return i
		}
		return len(order)
	}
	sorted := make([]models.TraitScore, len(traits))
	copy(sorted, traits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return rank(sorted[i].TraitID) < rank(sorted[j].TraitID)
	})
	n = min(n, len(sorted))
	out := make([]string, 0, n)
	for _, t := range sorted[:n] {
		out = append(out, t.TraitID)
	}
	return out
}

// tally totals a finished session: points are the sum of round scores plus
// 10 per win and 5 per draw.
func tally(s *models.Session) (total, points, wins, losses, draws int) {
	for _, r := range s.Rounds {
		if !r.Submitted() {
			continue
		}
		total += r.FinalScore
		switch r.Outcome {
		case models.OutcomeWin:
			wins++
		case models.OutcomeLoss:
			losses++
		case models.OutcomeDraw:
			draws++
		}
	}
	points = total + wins*10 + draws*5
	return
}
