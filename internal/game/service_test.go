package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/ai-fight-club/internal/apperr"
	"github.com/pefman/ai-fight-club/internal/content"
	"github.com/pefman/ai-fight-club/internal/models"
	"github.com/pefman/ai-fight-club/internal/prompts"
	"github.com/pefman/ai-fight-club/internal/session"
	"github.com/pefman/ai-fight-club/internal/stats"
)

const testCatalog = `
traits:
  - {id: curiosity, name: Curiosity}
  - {id: rigor, name: Rigor}
attitudes:
  - {id: useful, statement: AI is useful.}
  - {id: scary, statement: AI is scary., reverse: true}
focus_areas:
  - {id: f1, name: Focus One, description: The only focus.}
challenges:
  - {id: c1, focus: f1, round: 1, title: First, description: Do the first thing., time_limit_seconds: 60, difficulty: medium}
  - {id: c2, focus: f1, round: 2, title: Second, description: Do the second thing., time_limit_seconds: 60, difficulty: medium}
rivals:
  - {id: r1, name: Rusty, tier: elite, score_range: "10", affinity: [f1], taunts: [Rusty laughs.]}
`

type fakeGen struct {
	mu      sync.Mutex
	replies []reply
	prompts []prompts.Prompt
}

type reply struct {
	text string
	err  error
}

func (f *fakeGen) Generate(_ context.Context, p prompts.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if len(f.replies) == 0 {
		return "", errors.New("backend down")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.text, r.err
}

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func seeds() func() int64 { return func() int64 { return 42 } }

func kind(t *testing.T, err error) apperr.Kind {
	t.Helper()
	require.Error(t, err)
	return apperr.KindOf(err)
}

type fixture struct {
	svc   *Service
	store *session.MemoryStore
	board *stats.Board
	clock *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cat, err := content.Parse([]byte(testCatalog))
	require.NoError(t, err)
	store, err := session.NewMemoryStore(100)
	require.NoError(t, err)
	c := newClock()
	board := stats.NewBoard()
	board.WithNow(c.now)
	opts = append([]Option{WithClock(c.now), WithSeeds(seeds())}, opts...)
	return &fixture{svc: NewService(store, cat, board, opts...), store: store, board: board, clock: c}
}

var (
	info      = models.UserInfo{Name: "Ada", Role: "Engineer", Experience: "advanced"}
	traits    = []models.TraitScore{{TraitID: "curiosity", Score: 40}, {TraitID: "rigor", Score: 90}}
	attitudes = []models.AttitudeScore{{AttitudeID: "useful", Score: 80}, {AttitudeID: "scary", Score: 20}}
)

// throughFocus plays a new session up to round 1.
func (f *fixture) throughFocus(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	s, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.SubmitContext(ctx, s.ID, info)
	require.NoError(t, err)
	_, err = f.svc.SubmitTraits(ctx, s.ID, traits)
	require.NoError(t, err)
	_, err = f.svc.SubmitAttitudes(ctx, s.ID, attitudes)
	require.NoError(t, err)
	s, err = f.svc.SelectFocus(ctx, s.ID, "F1")
	require.NoError(t, err)
	assert.Equal(t, "f1", s.FocusID)
	require.NotNil(t, s.Rival)
	assert.Equal(t, models.PhaseRound1, s.Phase)
	return s.ID
}

func (f *fixture) playRound(t *testing.T, id string, n int, answer string) *RoundResult {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.StartRound(ctx, id, n)
	require.NoError(t, err)
	f.clock.advance(10 * time.Second)
	res, err := f.svc.SubmitRound(ctx, id, n, answer)
	require.NoError(t, err)
	return res
}

const goodAnswer = "First I would define the goal and the audience. Then I would write a prompt with examples, " +
	"check the output against the criteria, and iterate. Finally I verify facts and review the tone."

func TestFullGameWithoutBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.throughFocus(t)

	for n := 1; n <= models.Rounds; n++ {
		res := f.playRound(t, id, n, goodAnswer)
		assert.True(t, res.Evaluation.Degraded)
		assert.False(t, res.TimedOut)
		assert.Equal(t, "Rusty laughs.", res.Taunt)
		assert.Equal(t, NextRoute(RoundPhase(n)), res.NextRoute)
		assert.NotEmpty(t, res.Logs)
	}

	s, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseResults, s.Phase)
	// round 3 has no authored challenge
	assert.True(t, s.Round(3).Challenge.Generated)
	assert.Contains(t, s.Round(3).Challenge.Title, "Focus One")

	res, err := f.svc.Results(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Enthusiast", res.Archetype)
	assert.Equal(t, []string{"Rigor", "Curiosity"}, res.TopTraits)
	assert.Equal(t, 1, res.Rank)
	assert.Contains(t, res.Narrative, "Ada")
	assert.Equal(t, res.Wins+res.Losses+res.Draws, models.Rounds)
	assert.Equal(t, 1, f.board.Len())

	// results are computed once
	f.clock.advance(time.Hour)
	again, err := f.svc.Results(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, res.CompletedAt, again.CompletedAt)
	assert.Equal(t, res.Points, again.Points)
}

func TestFullGameWithBackend(t *testing.T) {
	gen := &fakeGen{replies: []reply{
		{text: `{"score": 80, "feedback": "solid"}`},
		{text: "\"You got lucky.\"\nextra"},
		{text: "```json\n{\"score\": 70, \"feedback\": \"ok\"}\n```"},
		{text: "Again?"},
		{text: `{"title": "Generated", "description": "Write a plan.", "time_limit_seconds": 600}`},
		{text: `{"score": 90, "feedback": "great"}`},
		{text: "Fine."},
		{text: "A strong showing."},
	}}
	f := newFixture(t, WithGenerator(gen))
	ctx := context.Background()
	id := f.throughFocus(t)

	r1 := f.playRound(t, id, 1, goodAnswer)
	assert.False(t, r1.Evaluation.Degraded)
	assert.Equal(t, 80, r1.Score)
	assert.Equal(t, 10, r1.RivalScore)
	assert.Equal(t, models.OutcomeWin, r1.Outcome)
	assert.Equal(t, "You got lucky.", r1.Taunt)

	r2 := f.playRound(t, id, 2, goodAnswer)
	assert.Equal(t, 70, r2.Score)

	rs, err := f.svc.StartRound(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, "Generated", rs.Challenge.Title)
	assert.Equal(t, 300, rs.Challenge.TimeLimit)
	assert.Equal(t, rs.StartedAt.Add(300*time.Second), rs.Deadline)
	// hard round: fixed range 10 plus 5
	assert.Equal(t, 15, rs.RivalScore)

	r3, err := f.svc.SubmitRound(ctx, id, 3, goodAnswer)
	require.NoError(t, err)
	assert.Equal(t, 90, r3.Score)

	res, err := f.svc.Results(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A strong showing.", res.Narrative)
	assert.Equal(t, 240, res.TotalScore)
	assert.Equal(t, 270, res.Points)
	assert.Equal(t, 3, res.Wins)
	assert.Len(t, gen.prompts, 8)
}

func TestBackendFailureFallsBack(t *testing.T) {
	gen := &fakeGen{replies: []reply{{text: "no json here"}}}
	f := newFixture(t, WithGenerator(gen))
	id := f.throughFocus(t)
	res := f.playRound(t, id, 1, goodAnswer)
	assert.True(t, res.Evaluation.Degraded)
	assert.Equal(t, "Rusty laughs.", res.Taunt)
}

func TestPhaseOrderIsEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Create(ctx)
	require.NoError(t, err)

	_, err = f.svc.SubmitTraits(ctx, s.ID, traits)
	assert.Equal(t, apperr.KindLocked, kind(t, err))
	_, err = f.svc.SelectFocus(ctx, s.ID, "f1")
	assert.Equal(t, apperr.KindLocked, kind(t, err))
	_, err = f.svc.StartRound(ctx, s.ID, 1)
	assert.Equal(t, apperr.KindLocked, kind(t, err))
	_, err = f.svc.Results(ctx, s.ID)
	assert.Equal(t, apperr.KindLocked, kind(t, err))

	id := f.throughFocus(t)
	_, err = f.svc.StartRound(ctx, id, 2)
	assert.Equal(t, apperr.KindLocked, kind(t, err))
	_, err = f.svc.StartRound(ctx, id, 4)
	assert.Equal(t, apperr.KindInvalid, kind(t, err))
}

func TestScoreCoverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.SubmitContext(ctx, s.ID, info)
	require.NoError(t, err)

	bad := map[string][]models.TraitScore{
		"missing":   {{TraitID: "curiosity", Score: 10}},
		"duplicate": {{TraitID: "curiosity", Score: 10}, {TraitID: "curiosity", Score: 20}},
		"unknown":   {{TraitID: "curiosity", Score: 10}, {TraitID: "charm", Score: 20}},
		"range":     {{TraitID: "curiosity", Score: 10}, {TraitID: "rigor", Score: 101}},
	}
	for name, scores := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SubmitTraits(ctx, s.ID, scores)
			assert.Equal(t, apperr.KindInvalid, kind(t, err))
		})
	}
	got, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Progress.TraitsDone)
}

func TestSubmitContextValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.SubmitContext(ctx, s.ID, models.UserInfo{Name: "  ", Role: "x", Experience: "none"})
	assert.Equal(t, apperr.KindInvalid, kind(t, err))
	_, err = f.svc.SubmitContext(ctx, s.ID, models.UserInfo{Name: "a", Role: "x", Experience: "guru"})
	assert.Equal(t, apperr.KindInvalid, kind(t, err))
	_, err = f.svc.SubmitContext(ctx, "nope", info)
	assert.Equal(t, apperr.KindNotFound, kind(t, err))
}

func TestRoundRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.throughFocus(t)

	_, err := f.svc.SubmitRound(ctx, id, 1, goodAnswer)
	assert.Equal(t, apperr.KindLocked, kind(t, err), "not started")

	first, err := f.svc.StartRound(ctx, id, 1)
	require.NoError(t, err)
	f.clock.advance(5 * time.Second)
	again, err := f.svc.StartRound(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, first.StartedAt, again.StartedAt)

	// answers are frozen once round 1 runs
	_, err = f.svc.SubmitContext(ctx, id, info)
	assert.Equal(t, apperr.KindLocked, kind(t, err))
	_, err = f.svc.SelectFocus(ctx, id, "f1")
	assert.Equal(t, apperr.KindLocked, kind(t, err))

	_, err = f.svc.SubmitRound(ctx, id, 1, "   ")
	assert.Equal(t, apperr.KindInvalid, kind(t, err))
	_, err = f.svc.SubmitRound(ctx, id, 1, strings.Repeat("x", maxResponseLen+1))
	assert.Equal(t, apperr.KindInvalid, kind(t, err))

	_, err = f.svc.SubmitRound(ctx, id, 1, goodAnswer)
	require.NoError(t, err)
	_, err = f.svc.SubmitRound(ctx, id, 1, goodAnswer)
	assert.Equal(t, apperr.KindLocked, kind(t, err), "single submit")
}

func TestLateAnswerIsPenalised(t *testing.T) {
	gen := &fakeGen{replies: []reply{{text: `{"score": 80}`}, {text: "Slowpoke."}}}
	f := newFixture(t, WithGenerator(gen))
	ctx := context.Background()
	id := f.throughFocus(t)

	_, err := f.svc.StartRound(ctx, id, 1)
	require.NoError(t, err)
	f.clock.advance(61 * time.Second)
	res, err := f.svc.SubmitRound(ctx, id, 1, goodAnswer)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, 80, res.Evaluation.Score)
	assert.Equal(t, 60, res.Score)
}

func TestGateService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.svc.Gate(ctx, "missing", "/traits")
	assert.False(t, d.Allowed)
	assert.Equal(t, "/", d.Redirect)
	assert.True(t, f.svc.Gate(ctx, "missing", "/").Allowed)

	s, err := f.svc.Create(ctx)
	require.NoError(t, err)
	d = f.svc.Gate(ctx, s.ID, "/round/1")
	assert.False(t, d.Allowed)
	assert.Equal(t, "/context", d.Redirect)

	id := f.throughFocus(t)
	assert.True(t, f.svc.Gate(ctx, id, "/round/1").Allowed)
}

type brokenStore struct{ session.Store }

func (brokenStore) Get(context.Context, string) (*models.Session, error) {
	return nil, errors.New("disk on fire")
}

func TestGateFailsOpen(t *testing.T) {
	f := newFixture(t)
	svc := NewService(brokenStore{f.store}, f.svc.Catalog(), f.board)
	d := svc.Gate(context.Background(), "any", "/results")
	assert.True(t, d.Allowed)
	assert.True(t, d.Degraded)
	assert.Equal(t, models.PhaseResults, d.Phase)
}

func TestSessionExpires(t *testing.T) {
	f := newFixture(t, WithSessionTTL(time.Hour))
	ctx := context.Background()
	s, err := f.svc.Create(ctx)
	require.NoError(t, err)
	f.clock.advance(2 * time.Hour)
	_, err = f.svc.Get(ctx, s.ID)
	assert.Equal(t, apperr.KindNotFound, kind(t, err))
	assert.Zero(t, f.store.Len(), "expired unfinished sessions are dropped")
}

func TestExpiredFinishedSessionIsKept(t *testing.T) {
	f := newFixture(t, WithSessionTTL(time.Hour))
	ctx := context.Background()
	id := f.throughFocus(t)
	for n := 1; n <= models.Rounds; n++ {
		f.playRound(t, id, n, goodAnswer)
	}
	_, err := f.svc.Results(ctx, id)
	require.NoError(t, err)

	f.clock.advance(2 * time.Hour)
	_, err = f.svc.Get(ctx, id)
	assert.Equal(t, apperr.KindNotFound, kind(t, err))
	done, err := f.store.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, id, done[0].ID)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.throughFocus(t)
	for n := 1; n <= models.Rounds; n++ {
		f.playRound(t, id, n, goodAnswer)
	}
	_, err := f.svc.Results(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, f.board.Len())

	s, err := f.svc.Reset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, models.PhaseWelcome, s.Phase)
	assert.Equal(t, models.Progress{}, s.Progress)
	assert.Nil(t, s.User)
	assert.Nil(t, s.Results)
	assert.Equal(t, 0, f.board.Len())
	daily := f.board.Daily()
	assert.Zero(t, daily.Games)
	assert.Nil(t, daily.Best)
}

func TestTopTraitTiesFollowCatalogOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Create(ctx)
	require.NoError(t, err)
	_, err = f.svc.SubmitContext(ctx, s.ID, info)
	require.NoError(t, err)
	// sent in reverse catalog order
	_, err = f.svc.SubmitTraits(ctx, s.ID, []models.TraitScore{{TraitID: "rigor", Score: 70}, {TraitID: "curiosity", Score: 70}})
	require.NoError(t, err)
	_, err = f.svc.SubmitAttitudes(ctx, s.ID, attitudes)
	require.NoError(t, err)
	_, err = f.svc.SelectFocus(ctx, s.ID, "f1")
	require.NoError(t, err)
	for n := 1; n <= models.Rounds; n++ {
		f.playRound(t, s.ID, n, goodAnswer)
	}
	res, err := f.svc.Results(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Curiosity", "Rigor"}, res.TopTraits)
}

func TestMultiByteAnswerLength(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.throughFocus(t)
	_, err := f.svc.StartRound(ctx, id, 1)
	require.NoError(t, err)

	_, err = f.svc.SubmitRound(ctx, id, 1, strings.Repeat("é", maxResponseLen+1))
	assert.Equal(t, apperr.KindInvalid, kind(t, err))

	// 5000 characters, 10000 bytes
	res, err := f.svc.SubmitRound(ctx, id, 1, strings.Repeat("é", 5000))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Round)
}

func TestLoadLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.throughFocus(t)
	for n := 1; n <= models.Rounds; n++ {
		f.playRound(t, id, n, goodAnswer)
	}
	_, err := f.svc.Results(ctx, id)
	require.NoError(t, err)

	board := stats.NewBoard()
	svc := NewService(f.store, f.svc.Catalog(), board, WithClock(f.clock.now))
	require.NoError(t, svc.LoadLeaderboard(ctx, 5, 1))
	assert.Equal(t, 6, board.Len())
	assert.Positive(t, board.Rank(id))
}

func TestConcurrentSubmitsAreSerialised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.throughFocus(t)
	_, err := f.svc.StartRound(ctx, id, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.SubmitRound(ctx, id, 1, goodAnswer); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}
