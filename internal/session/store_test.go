package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/ai-fight-club/internal/models"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mem, err := NewMemoryStore(16)
	require.NoError(t, err)
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"memory": mem, "sqlite": sq}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			s := &models.Session{ID: "s1", Seed: 9, Phase: models.PhaseTraits, User: &models.UserInfo{Name: "Ada"}}
			s.Progress.ContextDone = true
			require.NoError(t, st.Put(ctx, s))

			got, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "Ada", got.User.Name)
			assert.True(t, got.Progress.ContextDone)

			// stored copies are independent of the caller's value
			got.User.Name = "Grace"
			again, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "Ada", again.User.Name)

			require.NoError(t, st.Delete(ctx, "s1"))
			_, err = st.Get(ctx, "s1")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.Error(t, st.Put(ctx, &models.Session{}))
		})
	}
}

func TestStoreListCompleted(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Put(ctx, &models.Session{ID: "open"}))
			require.NoError(t, st.Put(ctx, &models.Session{ID: "late", Results: &models.Results{CompletedAt: t0.Add(time.Hour)}}))
			require.NoError(t, st.Put(ctx, &models.Session{ID: "early", Results: &models.Results{CompletedAt: t0}}))

			done, err := st.ListCompleted(ctx)
			require.NoError(t, err)
			require.Len(t, done, 2)
			assert.Equal(t, "early", done[0].ID)
			assert.Equal(t, "late", done[1].ID)
		})
	}
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemoryStore(2)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, &models.Session{ID: "a"}))
	require.NoError(t, m.Put(ctx, &models.Session{ID: "b"}))
	_, err = m.Get(ctx, "a") // touch a
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, &models.Session{ID: "c"}))

	assert.Equal(t, 2, m.Len())
	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
}
