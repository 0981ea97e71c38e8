package game

import (
	"strings"

	"github.com/pefman/ai-fight-club/internal/models"
)

// Order is the fixed linear progression.
var Order = []models.Phase{
	models.PhaseWelcome,
	models.PhaseContext,
	models.PhaseTraits,
	models.PhaseAttitudes,
	models.PhaseFocus,
	models.PhaseRound1,
	models.PhaseRound2,
	models.PhaseRound3,
	models.PhaseResults,
}

// RoutePhases maps client routes to the phase they show.
var RoutePhases = map[string]models.Phase{
	"/":          models.PhaseWelcome,
	"/context":   models.PhaseContext,
	"/traits":    models.PhaseTraits,
	"/attitudes": models.PhaseAttitudes,
	"/focus":     models.PhaseFocus,
	"/round/1":   models.PhaseRound1,
	"/round/2":   models.PhaseRound2,
	"/round/3":   models.PhaseRound3,
	"/results":   models.PhaseResults,
}

// ProgressionPaths maps a phase to the route a client goes to once it is done.
var ProgressionPaths = map[models.Phase]string{
	models.PhaseWelcome:   "/context",
	models.PhaseContext:   "/traits",
	models.PhaseTraits:    "/attitudes",
	models.PhaseAttitudes: "/focus",
	models.PhaseFocus:     "/round/1",
	models.PhaseRound1:    "/round/2",
	models.PhaseRound2:    "/round/3",
	models.PhaseRound3:    "/results",
	models.PhaseResults:   "/results",
}

var phaseRoute = func() map[models.Phase]string {
	m := make(map[models.Phase]string, len(RoutePhases))
	for route, p := range RoutePhases {
		m[p] = route
	}
	return m
}()

// Index returns the position of p in Order, -1 if unknown.
func Index(p models.Phase) int {
	for i, q := range Order {
		if q == p {
			return i
		}
	}
	return -1
}

func RouteOf(p models.Phase) string { return phaseRoute[p] }

func NextRoute(p models.Phase) string { return ProgressionPaths[p] }

// RoundPhase returns the phase of round n (1..3).
func RoundPhase(n int) models.Phase {
	return Order[Index(models.PhaseRound1)+n-1]
}

// Done reports the completion flag of a phase. WELCOME has no flag and is
// always done; RESULTS is done once the last round is.
func Done(pr models.Progress, p models.Phase) bool {
	switch p {
	case models.PhaseWelcome:
		return true
	case models.PhaseContext:
		return pr.ContextDone
	case models.PhaseTraits:
		return pr.TraitsDone
	case models.PhaseAttitudes:
		return pr.AttitudesDone
	case models.PhaseFocus:
		return pr.FocusDone
	case models.PhaseRound1:
		return pr.RoundsDone[0]
	case models.PhaseRound2:
		return pr.RoundsDone[1]
	case models.PhaseRound3:
		return pr.RoundsDone[2]
	case models.PhaseResults:
		return pr.RoundsDone[2]
	}
	return false
}

func setDone(pr *models.Progress, p models.Phase) {
	switch p {
	case models.PhaseContext:
		pr.ContextDone = true
	case models.PhaseTraits:
		pr.TraitsDone = true
	case models.PhaseAttitudes:
		pr.AttitudesDone = true
	case models.PhaseFocus:
		pr.FocusDone = true
	case models.PhaseRound1:
		pr.RoundsDone[0] = true
	case models.PhaseRound2:
		pr.RoundsDone[1] = true
	case models.PhaseRound3:
		pr.RoundsDone[2] = true
	}
}

// Decision is the gate's verdict for one navigation.
type Decision struct {
	Route    string       `json:"route"`
	Phase    models.Phase `json:"phase,omitempty"`
	Allowed  bool         `json:"allowed"`
	Redirect string       `json:"redirect,omitempty"`
	// Missing is the earliest phase that still has to be completed.
	Missing models.Phase `json:"missing,omitempty"`
	// Degraded is set when the check itself failed and navigation was allowed anyway.
	Degraded bool `json:"degraded,omitempty"`
}

// NormalizeRoute trims query strings and trailing slashes so "/traits/?x=1" gates like "/traits".
func NormalizeRoute(route string) string {
	r := strings.TrimSpace(route)
	if i := strings.IndexAny(r, "?#"); i >= 0 {
		r = r[:i]
	}
	if r == "" {
		return "/"
	}
	if !strings.HasPrefix(r, "/") {
		r = "/" + r
	}
	if len(r) > 1 {
		r = strings.TrimRight(r, "/")
		if r == "" {
			r = "/"
		}
	}
	return strings.ToLower(r)
}

// Gate decides whether a client may show route given the progress so far.
// Ungated routes are always allowed. A gated route whose prerequisites are
// unmet redirects to the earliest incomplete phase.
func Gate(pr models.Progress, route string) Decision {
	route = NormalizeRoute(route)
	target, ok := RoutePhases[route]
	if !ok {
		return Decision{Route: route, Allowed: true}
	}
	d := Decision{Route: route, Phase: target, Allowed: true}
	if missing, ok := firstUnmet(pr, target); ok {
		d.Allowed = false
		d.Missing = missing
		d.Redirect = RouteOf(missing)
	}
	return d
}

// firstUnmet returns the earliest phase before target that is not done.
func firstUnmet(pr models.Progress, target models.Phase) (models.Phase, bool) {
	for _, p := range Order[:Index(target)] {
		if !Done(pr, p) {
			return p, true
		}
	}
	return "", false
}

// Require returns the phase blocking target, or "" when target is reachable.
func Require(pr models.Progress, target models.Phase) models.Phase {
	p, _ := firstUnmet(pr, target)
	return p
}

// Advance marks completed as done and moves the session's phase forward
// to the next one. The phase never moves backwards.
func Advance(s *models.Session, completed models.Phase) {
	setDone(&s.Progress, completed)
	i := Index(completed)
	if i < 0 {
		return
	}
	next := i + 1
	if next >= len(Order) {
		next = len(Order) - 1
	}
	if Index(s.Phase) < next {
		s.Phase = Order[next]
	}
}

// Current returns the earliest phase the player still has to complete.
func Current(pr models.Progress) models.Phase {
	for _, p := range Order[1:] {
		if p == models.PhaseResults {
			break
		}
		if !Done(pr, p) {
			return p
		}
	}
	return models.PhaseResults
}
