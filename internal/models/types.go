package models

import "time"

// ========================= Phases =========================

// Phase is one step of the fixed linear game progression.
type Phase string

const (
	PhaseWelcome   Phase = "WELCOME"
	PhaseContext   Phase = "CONTEXT"
	PhaseTraits    Phase = "TRAITS"
	PhaseAttitudes Phase = "ATTITUDES"
	PhaseFocus     Phase = "FOCUS"
	PhaseRound1    Phase = "ROUND1"
	PhaseRound2    Phase = "ROUND2"
	PhaseRound3    Phase = "ROUND3"
	PhaseResults   Phase = "RESULTS"
)

// Rounds is the number of challenge rounds in a game.
const Rounds = 3

// ========================= Catalog =========================

type Trait struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description" yaml:"description"`
	LowLabel    string `json:"low_label" yaml:"low_label"`
	HighLabel   string `json:"high_label" yaml:"high_label"`
}

type Attitude struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	Statement string `json:"statement" yaml:"statement" validate:"required"`
	// Reverse items measure the opposite direction; their score is inverted when averaged.
	Reverse bool `json:"reverse,omitempty" yaml:"reverse"`
}

type FocusArea struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description" yaml:"description"`
}

type Challenge struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	FocusID     string   `json:"focus_id" yaml:"focus" validate:"required"`
	Round       int      `json:"round" yaml:"round" validate:"min=1,max=3"`
	Title       string   `json:"title" yaml:"title" validate:"required,max=120"`
	Description string   `json:"description" yaml:"description" validate:"required"`
	Criteria    []string `json:"criteria,omitempty" yaml:"criteria"`
	Keywords    []string `json:"keywords,omitempty" yaml:"keywords"`
	TimeLimit   int      `json:"time_limit_seconds" yaml:"time_limit_seconds" validate:"min=30,max=1800"`
	Difficulty  string   `json:"difficulty" yaml:"difficulty" validate:"oneof=easy medium hard"`
	Generated   bool     `json:"generated,omitempty" yaml:"-"`
}

type Rival struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Personality string   `json:"personality" yaml:"personality"`
	Tier        string   `json:"tier" yaml:"tier" validate:"oneof=rookie veteran elite"`
	ScoreRange  string   `json:"score_range" yaml:"score_range" validate:"required"`
	Affinity    []string `json:"affinity,omitempty" yaml:"affinity"`
	Taunts      []string `json:"taunts,omitempty" yaml:"taunts"`
}

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AwardedAt   time.Time `json:"awarded_at,omitempty"`
}

// ========================= Player input =========================

type UserInfo struct {
	Name       string `json:"name" validate:"required,min=1,max=60"`
	Role       string `json:"role" validate:"required,min=1,max=80"`
	Industry   string `json:"industry,omitempty" validate:"max=80"`
	Experience string `json:"experience" validate:"oneof=none beginner intermediate advanced expert"`
	Goals      string `json:"goals,omitempty" validate:"max=500"`
}

type TraitScore struct {
	TraitID string `json:"trait_id" validate:"required"`
	Score   int    `json:"score" validate:"min=0,max=100"`
}

type AttitudeScore struct {
	AttitudeID string `json:"attitude_id" validate:"required"`
	Score      int    `json:"score" validate:"min=0,max=100"`
}

// ========================= Rounds =========================

type Submission struct {
	Response    string    `json:"response"`
	SubmittedAt time.Time `json:"submitted_at"`
	Elapsed     float64   `json:"elapsed_seconds"`
}

type Evaluation struct {
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	// Degraded is set when the AI backend was unavailable and a local heuristic scored the response.
	Degraded bool `json:"degraded,omitempty"`
}

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

type RoundState struct {
	Round      int         `json:"round"`
	Challenge  *Challenge  `json:"challenge,omitempty"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	Deadline   time.Time   `json:"deadline,omitempty"`
	RivalScore int         `json:"rival_score"`
	Submission *Submission `json:"submission,omitempty"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
	FinalScore int         `json:"final_score"`
	TimedOut   bool        `json:"timed_out,omitempty"`
	Outcome    Outcome     `json:"outcome,omitempty"`
	Taunt      string      `json:"taunt,omitempty"`
}

func (r *RoundState) Started() bool   { return r != nil && !r.StartedAt.IsZero() }
func (r *RoundState) Submitted() bool { return r != nil && r.Submission != nil }

// ========================= Session =========================

// Progress holds the completion flags the phase gate checks.
type Progress struct {
	ContextDone   bool         `json:"context_done"`
	TraitsDone    bool         `json:"traits_done"`
	AttitudesDone bool         `json:"attitudes_done"`
	FocusDone     bool         `json:"focus_done"`
	RoundsDone    [Rounds]bool `json:"rounds_done"`
}

type Results struct {
	TotalScore int      `json:"total_score"`
	Points     int      `json:"points"`
	Wins       int      `json:"wins"`
	Losses     int      `json:"losses"`
	Draws      int      `json:"draws"`
	Archetype  string   `json:"archetype"`
	TopTraits  []string `json:"top_traits"`
	Badges     []Badge  `json:"badges"`
	Narrative  string   `json:"narrative"`
	Rank       int      `json:"rank,omitempty"`
	// CompletedAt is when results were first computed.
	CompletedAt time.Time `json:"completed_at"`
}

type Session struct {
	ID        string              `json:"id"`
	Seed      int64               `json:"seed"`
	Phase     Phase               `json:"phase"`
	Progress  Progress            `json:"progress"`
	User      *UserInfo           `json:"user,omitempty"`
	Traits    []TraitScore        `json:"traits,omitempty"`
	Attitudes []AttitudeScore     `json:"attitudes,omitempty"`
	FocusID   string              `json:"focus_id,omitempty"`
	Rival     *Rival              `json:"rival,omitempty"`
	Rounds    [Rounds]*RoundState `json:"rounds"`
	Results   *Results            `json:"results,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Round returns the state of round n (1-based), or nil when out of range or not started.
func (s *Session) Round(n int) *RoundState {
	if n < 1 || n > Rounds {
		return nil
	}
	return s.Rounds[n-1]
}

// Completed reports whether results have been computed.
func (s *Session) Completed() bool { return s.Results != nil }

// DisplayName falls back to "Anon" when no context has been submitted.
func (s *Session) DisplayName() string {
	if s.User != nil && s.User.Name != "" {
		return s.User.Name
	}
	return "Anon"
}

type LeaderboardEntry struct {
	Position    int       `json:"position"`
	SessionID   string    `json:"session_id,omitempty"`
	Name        string    `json:"name"`
	Score       int       `json:"score"`
	FocusID     string    `json:"focus_id,omitempty"`
	Badges      int       `json:"badges"`
	Wins        int       `json:"wins"`
	CompletedAt time.Time `json:"completed_at"`
	Mock        bool      `json:"mock,omitempty"`
}

// WsMsg is the envelope pushed over the live session stream.
type WsMsg struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
