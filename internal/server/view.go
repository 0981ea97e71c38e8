package server

import (
	"math"
	"time"

	"github.com/pefman/ai-fight-club/internal/game"
	"github.com/pefman/ai-fight-club/internal/models"
)

// sessionView is a session as clients see it, plus where to go next.
type sessionView struct {
	*models.Session
	// Resume is the route of the earliest phase still to complete.
	Resume string `json:"resume"`
}

func viewSession(s *models.Session) sessionView {
	return sessionView{Session: redactSession(s), Resume: game.RouteOf(game.Current(s.Progress))}
}

// redactSession hides what a player shouldn't see before answering: the
// rival's pre-rolled score and the scoring keywords of open rounds.
func redactSession(s *models.Session) *models.Session {
	cp := *s
	for i, rs := range s.Rounds {
		if rs != nil && !rs.Submitted() {
			cp.Rounds[i] = redactRound(rs)
		}
	}
	return &cp
}

func redactRound(rs *models.RoundState) *models.RoundState {
	r := *rs
	r.RivalScore = 0
	if rs.Challenge != nil {
		ch := *rs.Challenge
		ch.Keywords = nil
		r.Challenge = &ch
	}
	return &r
}

type roundView struct {
	*models.RoundState
	Remaining int  `json:"remaining_seconds"`
	Submitted bool `json:"submitted"`
}

func viewRound(rs *models.RoundState, now time.Time) roundView {
	v := roundView{RoundState: rs, Submitted: rs.Submitted()}
	if !v.Submitted {
		v.RoundState = redactRound(rs)
		if left := rs.Deadline.Sub(now).Seconds(); left > 0 {
			v.Remaining = int(math.Ceil(left))
		}
	}
	return v
}
