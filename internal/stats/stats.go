package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pefman/ai-fight-club/internal/models"
)

// Board keeps finished games ranked by score (in-memory; rebuilt from the
// session store on startup).
type Board struct {
	mu        sync.Mutex
	bySession map[string]models.LeaderboardEntry
	daily     dailyBest
	now       func() time.Time
}

func NewBoard() *Board {
	return &Board{bySession: make(map[string]models.LeaderboardEntry), now: time.Now}
}

// WithNow injects a deterministic clock for tests.
func (b *Board) WithNow(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

// Record adds or replaces the entry for a session and updates the daily best.
func (b *Board) Record(e models.LeaderboardEntry) {
	if strings.TrimSpace(e.SessionID) == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e.Position = 0
	if old, ok := b.bySession[e.SessionID]; ok {
		delete(b.bySession, e.SessionID)
		if !old.Mock {
			b.daily.forget(b.now(), old, b.bySession)
		}
	}
	b.bySession[e.SessionID] = e
	if !e.Mock {
		b.daily.offer(b.now(), e)
	}
}

func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bySession)
}

// Top returns up to limit entries, optionally filtered by focus area, with
// 1-based positions. limit <= 0 means all.
func (b *Board) Top(limit int, focusID string) []models.LeaderboardEntry {
	b.mu.Lock()
	out := make([]models.LeaderboardEntry, 0, len(b.bySession))
	for _, e := range b.bySession {
		if focusID != "" && !strings.EqualFold(e.FocusID, focusID) {
			continue
		}
		out = append(out, e)
	}
	b.mu.Unlock()
	sortEntries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// Rank returns the 1-based overall position of a session, 0 if unknown.
func (b *Board) Rank(sessionID string) int {
	for _, e := range b.Top(0, "") {
		if e.SessionID == sessionID {
			return e.Position
		}
	}
	return 0
}

// Remove drops a session's entry, e.g. when a player resets their game.
func (b *Board) Remove(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.bySession[sessionID]
	if !ok {
		return
	}
	delete(b.bySession, sessionID)
	if !e.Mock {
		b.daily.forget(b.now(), e, b.bySession)
	}
}

// Score desc, then earlier completion, then name.
func sortEntries(out []models.LeaderboardEntry) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
}
