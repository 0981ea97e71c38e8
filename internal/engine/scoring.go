package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pefman/ai-fight-club/internal/models"
)

// HeuristicScore rates a response without the AI backend. It looks at length,
// challenge keyword coverage, criteria coverage and sentence structure, and
// returns an evaluation marked as degraded.
func HeuristicScore(ch *models.Challenge, response string) models.Evaluation {
	text := strings.ToLower(strings.TrimSpace(response))
	words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	ev := models.Evaluation{Degraded: true}
	if len(words) == 0 {
		ev.Feedback = "No answer was given."
		ev.Improvements = []string{"Write an answer to the challenge."}
		return ev
	}

	// Length: up to 35 points, full marks at 120 words.
	lengthPts := len(words) * 35 / 120
	if lengthPts > 35 {
		lengthPts = 35
	}

	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}

	// Keywords: up to 35 points.
	keywordPts, hitKw := 0, 0
	if ch != nil && len(ch.Keywords) > 0 {
		for _, k := range ch.Keywords {
			if containsTerm(text, seen, k) {
				hitKw++
			}
		}
		keywordPts = hitKw * 35 / len(ch.Keywords)
	} else {
		keywordPts = 20
	}

	// Criteria: up to 20 points, a criterion counts when any of its longer words shows up.
	criteriaPts, hitCr := 0, 0
	if ch != nil && len(ch.Criteria) > 0 {
		for _, c := range ch.Criteria {
			for _, w := range strings.Fields(strings.ToLower(c)) {
				w = strings.Trim(w, ".,;:!?()\"'")
				if len(w) >= 5 && seen[w] {
					hitCr++
					break
				}
			}
		}
		criteriaPts = hitCr * 20 / len(ch.Criteria)
	} else {
		criteriaPts = 10
	}

	// Structure: up to 10 points for multiple sentences or list items.
	sentences := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?") + strings.Count(text, "\n-")
	structPts := sentences * 2
	if structPts > 10 {
		structPts = 10
	}

	ev.Score = Clamp(0, 100, lengthPts+keywordPts+criteriaPts+structPts)
	ev.Feedback = fmt.Sprintf("Scored locally: %d words, %d keyword(s) matched.", len(words), hitKw)
	if lengthPts >= 25 {
		ev.Strengths = append(ev.Strengths, "Answer is developed in enough detail.")
	} else {
		ev.Improvements = append(ev.Improvements, "Expand the answer with more detail.")
	}
	if ch != nil && len(ch.Keywords) > 0 && hitKw*2 >= len(ch.Keywords) {
		ev.Strengths = append(ev.Strengths, "Covers the key ideas of the challenge.")
	} else {
		ev.Improvements = append(ev.Improvements, "Address the core concepts the challenge asks about.")
	}
	if structPts < 6 {
		ev.Improvements = append(ev.Improvements, "Break the answer into clear steps or sentences.")
	}
	return ev
}

func containsTerm(text string, words map[string]bool, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	if strings.Contains(term, " ") {
		return strings.Contains(text, term)
	}
	return words[term]
}

// ApplyTimePenalty cuts a late answer's score by a quarter.
func ApplyTimePenalty(score int, timedOut bool) int {
	if !timedOut {
		return score
	}
	return score * 3 / 4
}
