package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/pefman/ai-fight-club/internal/models"
)

var errNoJSON = errors.New("no JSON object in model output")

// extractJSON trims markdown fences and surrounding chatter, then repairs the
// object so trailing commas, single quotes and truncation don't fail the parse.
func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	if start < 0 {
		return "", errNoJSON
	}
	s = s[start:]
	if end := strings.LastIndex(s, "}"); end >= 0 {
		s = s[:end+1]
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}
	fixed, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return "", fmt.Errorf("repair model JSON: %w", err)
	}
	return fixed, nil
}

type evaluationOut struct {
	Score        *float64 `json:"score" validate:"required,min=0,max=100"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// ParseEvaluation decodes the judge's reply. Scores are rounded to integers.
func ParseEvaluation(text string) (models.Evaluation, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return models.Evaluation{}, err
	}
	var out evaluationOut
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return models.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return models.Evaluation{}, fmt.Errorf("invalid evaluation: %w", err)
	}
	return models.Evaluation{
		Score:        int(*out.Score + 0.5),
		Feedback:     strings.TrimSpace(out.Feedback),
		Strengths:    out.Strengths,
		Improvements: out.Improvements,
	}, nil
}

type challengeOut struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Criteria    []string `json:"criteria"`
	Keywords    []string `json:"keywords"`
	TimeLimit   int      `json:"time_limit_seconds"`
}

// ParseChallenge decodes a generated challenge. The time limit is clamped to
// 120..300 seconds and the title to 120 characters.
func ParseChallenge(text, focusID string, round int) (*models.Challenge, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var out challengeOut
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return nil, fmt.Errorf("invalid challenge: %w", err)
	}
	limit := out.TimeLimit
	if limit < 120 {
		limit = 120
	}
	if limit > 300 {
		limit = 300
	}
	title := strings.TrimSpace(out.Title)
	if r := []rune(title); len(r) > 120 {
		title = strings.TrimSpace(string(r[:120]))
	}
	return &models.Challenge{
		ID:          fmt.Sprintf("gen-%s-%d", focusID, round),
		FocusID:     focusID,
		Round:       round,
		Title:       title,
		Description: strings.TrimSpace(out.Description),
		Criteria:    out.Criteria,
		Keywords:    out.Keywords,
		TimeLimit:   limit,
		Difficulty:  DifficultyFor(round),
		Generated:   true,
	}, nil
}

// CleanLine normalises a one-line reply: first line only, quotes stripped.
func CleanLine(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
