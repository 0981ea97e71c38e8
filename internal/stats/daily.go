package stats

import (
	"time"

	"github.com/pefman/ai-fight-club/internal/models"
)

// This file contains helpers around daily stats. It complements stats.go.

type DailyStats struct {
	Date string                   `json:"date"`
	Best *models.LeaderboardEntry `json:"best,omitempty"`
	// Games counts real games finished today.
	Games int `json:"games"`
}

// dailyBest tracks today's top game (UTC). Guarded by Board.mu.
type dailyBest struct {
	state DailyStats
}

func dateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (d *dailyBest) roll(now time.Time) {
	today := dateKey(now)
	if d.state.Date != today {
		d.state = DailyStats{Date: today}
	}
}

func (d *dailyBest) offer(now time.Time, e models.LeaderboardEntry) {
	d.roll(now)
	// only games completed today count
	if dateKey(e.CompletedAt) != d.state.Date {
		return
	}
	d.state.Games++
	cur := d.state.Best
	if cur == nil || e.Score > cur.Score || (e.Score == cur.Score && e.CompletedAt.Before(cur.CompletedAt)) {
		cp := e
		cp.Position = 1
		d.state.Best = &cp
	}
}

// forget takes a removed entry back out of today's stats. The best is
// recomputed from the entries that remain.
func (d *dailyBest) forget(now time.Time, e models.LeaderboardEntry, remaining map[string]models.LeaderboardEntry) {
	d.roll(now)
	if dateKey(e.CompletedAt) != d.state.Date {
		return
	}
	if d.state.Games > 0 {
		d.state.Games--
	}
	if d.state.Best == nil || d.state.Best.SessionID != e.SessionID {
		return
	}
	d.state.Best = nil
	games := d.state.Games
	for _, r := range remaining {
		if !r.Mock {
			d.offer(now, r)
		}
	}
	d.state.Games = games
}

// Daily returns today's stats, resetting them when the date has changed.
func (b *Board) Daily() DailyStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.daily.roll(b.now())
	out := b.daily.state
	if out.Best != nil {
		cp := *out.Best
		out.Best = &cp
	}
	return out
}

// ResetDaily clears today's stats.
// Intended for tests and dev convenience.
func (b *Board) ResetDaily() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.daily.state = DailyStats{}
}
