package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pefman/ai-fight-club/internal/models"
)

func progressThrough(p models.Phase) models.Progress {
	var pr models.Progress
	for _, q := range Order[:Index(p)+1] {
		setDone(&pr, q)
	}
	return pr
}

func TestGate(t *testing.T) {
	tests := []struct {
		name     string
		progress models.Progress
		route    string
		allowed  bool
		redirect string
		missing  models.Phase
	}{
		{"welcome always", models.Progress{}, "/", true, "", ""},
		{"context needs nothing", models.Progress{}, "/context", true, "", ""},
		{"traits before context", models.Progress{}, "/traits", false, "/context", models.PhaseContext},
		{"results from scratch", models.Progress{}, "/results", false, "/context", models.PhaseContext},
		{"round 1 after focus", progressThrough(models.PhaseFocus), "/round/1", true, "", ""},
		{"round 3 after round 1", progressThrough(models.PhaseRound1), "/round/3", false, "/round/2", models.PhaseRound2},
		{"results after round 3", progressThrough(models.PhaseRound3), "/results", true, "", ""},
		{"revisit earlier page", progressThrough(models.PhaseRound2), "/traits", true, "", ""},
		{"ungated route", models.Progress{}, "/leaderboard", true, "", ""},
		{"normalized route", models.Progress{}, "/Traits/?from=nav", false, "/context", models.PhaseContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Gate(tt.progress, tt.route)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.redirect, d.Redirect)
			assert.Equal(t, tt.missing, d.Missing)
		})
	}
}

func TestGateSkippedStep(t *testing.T) {
	// flags set out of order still redirect to the earliest gap
	pr := models.Progress{ContextDone: true, AttitudesDone: true}
	d := Gate(pr, "/focus")
	assert.False(t, d.Allowed)
	assert.Equal(t, "/traits", d.Redirect)
}

func TestProgressionPathsFollowOrder(t *testing.T) {
	for i, p := range Order[:len(Order)-1] {
		assert.Equal(t, RouteOf(Order[i+1]), NextRoute(p), string(p))
	}
	assert.Equal(t, "/results", NextRoute(models.PhaseResults))
	for route, p := range RoutePhases {
		assert.Equal(t, route, RouteOf(p))
	}
}

func TestAdvanceNeverMovesBack(t *testing.T) {
	s := &models.Session{Phase: models.PhaseWelcome}
	Advance(s, models.PhaseContext)
	assert.Equal(t, models.PhaseTraits, s.Phase)
	assert.True(t, s.Progress.ContextDone)

	Advance(s, models.PhaseTraits)
	Advance(s, models.PhaseAttitudes)
	assert.Equal(t, models.PhaseFocus, s.Phase)

	// resubmitting context keeps the later phase
	Advance(s, models.PhaseContext)
	assert.Equal(t, models.PhaseFocus, s.Phase)

	s.Phase = models.PhaseRound3
	Advance(s, models.PhaseRound3)
	assert.Equal(t, models.PhaseResults, s.Phase)
	assert.True(t, s.Progress.RoundsDone[2])
}

func TestCurrentAndRequire(t *testing.T) {
	assert.Equal(t, models.PhaseContext, Current(models.Progress{}))
	assert.Equal(t, models.PhaseRound2, Current(progressThrough(models.PhaseRound1)))
	assert.Equal(t, models.PhaseResults, Current(progressThrough(models.PhaseRound3)))

	assert.Equal(t, models.PhaseFocus, Require(progressThrough(models.PhaseAttitudes), models.PhaseRound1))
	assert.Equal(t, models.Phase(""), Require(progressThrough(models.PhaseFocus), models.PhaseRound1))
	assert.Equal(t, models.PhaseRound2, RoundPhase(2))
}

func TestTopTraits(t *testing.T) {
	order := []string{"a", "b", "c"}
	tests := []struct {
		name   string
		traits []models.TraitScore
		want   []string
	}{
		{"highest first", []models.TraitScore{{TraitID: "a", Score: 10}, {TraitID: "b", Score: 90}, {TraitID: "c", Score: 50}}, []string{"b", "c"}},
		{"ties by catalog", []models.TraitScore{{TraitID: "c", Score: 70}, {TraitID: "b", Score: 70}, {TraitID: "a", Score: 70}}, []string{"a", "b"}},
		{"unknown ids last", []models.TraitScore{{TraitID: "zz", Score: 70}, {TraitID: "c", Score: 70}}, []string{"c", "zz"}},
		{"fewer than n", []models.TraitScore{{TraitID: "a", Score: 1}}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopTraits(tt.traits, 2, order))
		})
	}
}
