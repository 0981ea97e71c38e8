package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/ai-fight-club/internal/models"
)

func TestTopOrdering(t *testing.T) {
	b := NewBoard()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b.Record(models.LeaderboardEntry{SessionID: "a", Name: "Zed", Score: 200, CompletedAt: t0.Add(time.Minute), FocusID: "coding"})
	b.Record(models.LeaderboardEntry{SessionID: "b", Name: "Amy", Score: 200, CompletedAt: t0, FocusID: "writing"})
	b.Record(models.LeaderboardEntry{SessionID: "c", Name: "Bob", Score: 250, CompletedAt: t0, FocusID: "coding"})
	b.Record(models.LeaderboardEntry{SessionID: "d", Name: "al", Score: 200, CompletedAt: t0, FocusID: "coding"})
	b.Record(models.LeaderboardEntry{Name: "ignored", Score: 999})

	top := b.Top(0, "")
	require.Len(t, top, 4)
	ids := []string{top[0].SessionID, top[1].SessionID, top[2].SessionID, top[3].SessionID}
	assert.Equal(t, []string{"c", "d", "b", "a"}, ids)
	for i, e := range top {
		assert.Equal(t, i+1, e.Position)
	}

	coding := b.Top(2, "CODING")
	require.Len(t, coding, 2)
	assert.Equal(t, "c", coding[0].SessionID)
	assert.Equal(t, 2, coding[1].Position)

	assert.Equal(t, 3, b.Rank("b"))
	assert.Equal(t, 0, b.Rank("nope"))
}

func TestRecordReplacesAndRemove(t *testing.T) {
	b := NewBoard()
	b.Record(models.LeaderboardEntry{SessionID: "a", Name: "A", Score: 10})
	b.Record(models.LeaderboardEntry{SessionID: "a", Name: "A", Score: 90})
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 90, b.Top(1, "")[0].Score)
	b.Remove("a")
	assert.Equal(t, 0, b.Len())
}

func TestDailyBest(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBoard()
	b.WithNow(func() time.Time { return now })

	b.Record(models.LeaderboardEntry{SessionID: "y", Name: "Yesterday", Score: 300, CompletedAt: now.Add(-24 * time.Hour)})
	b.Record(models.LeaderboardEntry{SessionID: "m", Name: "Mock", Score: 999, CompletedAt: now, Mock: true})
	b.Record(models.LeaderboardEntry{SessionID: "a", Name: "A", Score: 150, CompletedAt: now.Add(-time.Hour)})
	b.Record(models.LeaderboardEntry{SessionID: "b", Name: "B", Score: 180, CompletedAt: now})

	d := b.Daily()
	assert.Equal(t, "2026-03-01", d.Date)
	assert.Equal(t, 2, d.Games)
	require.NotNil(t, d.Best)
	assert.Equal(t, "b", d.Best.SessionID)

	// date rolls over
	now = now.Add(24 * time.Hour)
	d = b.Daily()
	assert.Equal(t, "2026-03-02", d.Date)
	assert.Nil(t, d.Best)
	assert.Zero(t, d.Games)

	b.ResetDaily()
	assert.Equal(t, "2026-03-02", b.Daily().Date)
}

func TestRemoveUpdatesDaily(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBoard()
	b.WithNow(func() time.Time { return now })

	b.Record(models.LeaderboardEntry{SessionID: "a", Name: "A", Score: 150, CompletedAt: now.Add(-time.Hour)})
	b.Record(models.LeaderboardEntry{SessionID: "b", Name: "B", Score: 180, CompletedAt: now})
	b.Record(models.LeaderboardEntry{SessionID: "y", Name: "Yesterday", Score: 300, CompletedAt: now.Add(-24 * time.Hour)})

	b.Remove("b")
	d := b.Daily()
	assert.Equal(t, 1, d.Games)
	require.NotNil(t, d.Best)
	assert.Equal(t, "a", d.Best.SessionID)

	b.Remove("a")
	d = b.Daily()
	assert.Zero(t, d.Games)
	assert.Nil(t, d.Best)

	b.Remove("missing")
	assert.Zero(t, b.Daily().Games)
}

func TestRecordAgainCountsOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBoard()
	b.WithNow(func() time.Time { return now })

	b.Record(models.LeaderboardEntry{SessionID: "a", Name: "A", Score: 200, CompletedAt: now})
	b.Record(models.LeaderboardEntry{SessionID: "b", Name: "B", Score: 150, CompletedAt: now})
	b.Record(models.LeaderboardEntry{SessionID: "a", Name: "A", Score: 100, CompletedAt: now})

	d := b.Daily()
	assert.Equal(t, 2, d.Games)
	require.NotNil(t, d.Best)
	assert.Equal(t, "b", d.Best.SessionID)
}
