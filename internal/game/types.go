package game

import (
	"context"
	"time"

	"github.com/pefman/ai-fight-club/internal/models"
	"github.com/pefman/ai-fight-club/internal/prompts"
)

// Generator turns a prompt into text. The backend client and the Gemini
// client both satisfy it.
type Generator interface {
	Generate(ctx context.Context, p prompts.Prompt) (string, error)
}

// Notifier receives session events for live clients.
type Notifier interface {
	SessionUpdated(s *models.Session)
	RoundStarted(sessionID string, round int, deadline time.Time)
	RoundClosed(sessionID string, round int)
}

type nopNotifier struct{}

func (nopNotifier) SessionUpdated(*models.Session)      {}
func (nopNotifier) RoundStarted(string, int, time.Time) {}
func (nopNotifier) RoundClosed(string, int)             {}

// Metrics is the subset of collectors the service reports to.
type Metrics interface {
	SessionCreated()
	PhaseCompleted(phase string)
	GateRedirect(target string)
	RoundOutcome(outcome string, degraded bool)
}

type nopMetrics struct{}

func (nopMetrics) SessionCreated()           {}
func (nopMetrics) PhaseCompleted(string)     {}
func (nopMetrics) GateRedirect(string)       {}
func (nopMetrics) RoundOutcome(string, bool) {}
