package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
)

// Prompt is what gets sent to the AI backend.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"prompt"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ========================= System prompts =========================

const evaluationSystem = `You are the judge of AI Fight Club, a game that tests how well people work with AI.
You score one answer to one challenge.

You must output ONLY a JSON object with these exact fields:
- score: integer 0 to 100
- feedback: 1-3 sentences addressed to the player
- strengths: array of short strings (may be empty)
- improvements: array of short strings (may be empty)

Scoring rules:
1. Judge against the listed criteria; each unmet criterion costs at least 15 points
2. Reward concrete, actionable answers over generic ones
3. An empty or off-topic answer scores below 10
4. Output ONLY the JSON object, no markdown, no explanation`

const tauntSystem = `You voice a rival fighter in AI Fight Club.
Stay in character. Reply with ONE short line (max 20 words), playful, never insulting the player personally.
No quotes, no emojis, no stage directions.`

const resultsSystem = `You are the announcer of AI Fight Club.
Write a short debrief (3-5 sentences) of the player's game: how the rounds went, what their profile suggests,
and one concrete tip for working with AI. Address the player as "you". Plain text only.`

const challengeSystem = `You design challenges for AI Fight Club, a game that tests how well people work with AI.

You must output ONLY a JSON object with these exact fields:
- title: string, max 60 characters
- description: the task, 2-4 sentences, answerable in writing within the time limit
- criteria: array of 3 strings the answer will be judged on
- keywords: array of 4-6 single words a good answer is likely to use
- time_limit_seconds: integer between 120 and 300

Output ONLY the JSON object.`

// ========================= Templates =========================

var tmpl = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`
{{define "evaluation"}}Focus area: {{.FocusArea}}
Round: {{.Round}} of 3

Challenge: {{.Title}}
{{.Description}}
{{if .Criteria}}
Criteria:
{{range .Criteria}}- {{.}}
{{end}}{{end}}{{with .Player}}
Player: {{.Role}}{{if .Industry}} in {{.Industry}}{{end}}, AI experience: {{.Experience}}
{{end}}
Answer:
"""
{{.Response}}
"""{{end}}

{{define "taunt"}}You are {{.RivalName}}. {{.Personality}}
Round {{.Round}} just ended. Your score: {{.RivalScore}}. The player's score: {{.PlayerScore}}.
{{if eq .Outcome "win"}}The player beat you.{{else if eq .Outcome "loss"}}You beat the player.{{else}}It was a draw.{{end}}
Say your line.{{end}}

{{define "results"}}Player: {{.Name}}
AI attitude archetype: {{.Archetype}}
Strongest traits: {{join .TopTraits ", "}}
{{range .Rounds}}
Round {{.Round}} "{{.Title}}": player {{.Score}} vs rival {{.RivalScore}} ({{.Outcome}}){{end}}
{{if .Badges}}
Badges earned: {{join .Badges ", "}}{{end}}{{end}}

{{define "challenge"}}Focus area: {{.FocusName}} ({{.FocusDescription}})
Round: {{.Round}} of 3
Difficulty: {{.Difficulty}}
Player AI experience: {{.Experience}}

Design one challenge.{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func check(in any) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid prompt input: %w", err)
	}
	return nil
}

// ========================= Builders =========================

type PlayerContext struct {
	Role       string
	Industry   string
	Experience string
}

type EvaluationInput struct {
	FocusArea   string         `validate:"required"`
	Round       int            `validate:"min=1,max=3"`
	Title       string         `validate:"required"`
	Description string         `validate:"required"`
	Criteria    []string
	Response    string         `validate:"required,max=8000"`
	Player      *PlayerContext
}

func BuildEvaluation(in EvaluationInput) (Prompt, error) {
	if err := check(in); err != nil {
		return Prompt{}, err
	}
	user, err := render("evaluation", in)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: evaluationSystem, User: user}, nil
}

type TauntInput struct {
	RivalName   string `validate:"required"`
	Personality string
	Round       int    `validate:"min=1,max=3"`
	PlayerScore int    `validate:"min=0,max=100"`
	RivalScore  int    `validate:"min=0,max=100"`
	Outcome     string `validate:"oneof=win loss draw"`
}

func BuildRivalTaunt(in TauntInput) (Prompt, error) {
	if err := check(in); err != nil {
		return Prompt{}, err
	}
	user, err := render("taunt", in)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: tauntSystem, User: user}, nil
}

type RoundSummary struct {
	Round      int    `validate:"min=1,max=3"`
	Title      string `validate:"required"`
	Score      int    `validate:"min=0,max=100"`
	RivalScore int    `validate:"min=0,max=100"`
	Outcome    string `validate:"oneof=win loss draw"`
}

type ResultsInput struct {
	Name      string         `validate:"required"`
	Archetype string         `validate:"required"`
	TopTraits []string
	Rounds    []RoundSummary `validate:"len=3,dive"`
	Badges    []string
}

func BuildResultsSummary(in ResultsInput) (Prompt, error) {
	if err := check(in); err != nil {
		return Prompt{}, err
	}
	user, err := render("results", in)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: resultsSystem, User: user}, nil
}

type ChallengeInput struct {
	FocusName        string `validate:"required"`
	FocusDescription string
	Round            int    `validate:"min=1,max=3"`
	Difficulty       string `validate:"oneof=easy medium hard"`
	Experience       string
}

func BuildChallenge(in ChallengeInput) (Prompt, error) {
	if err := check(in); err != nil {
		return Prompt{}, err
	}
	if in.Experience == "" {
		in.Experience = "unknown"
	}
	user, err := render("challenge", in)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: challengeSystem, User: user}, nil
}

// DifficultyFor maps a round to the difficulty generated challenges use.
func DifficultyFor(round int) string {
	switch round {
	case 1:
		return "easy"
	case 2:
		return "medium"
	default:
		return "hard"
	}
}
