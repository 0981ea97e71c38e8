package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/apperr"
	"github.com/pefman/ai-fight-club/internal/badges"
	"github.com/pefman/ai-fight-club/internal/content"
	"github.com/pefman/ai-fight-club/internal/engine"
	"github.com/pefman/ai-fight-club/internal/models"
	"github.com/pefman/ai-fight-club/internal/prompts"
	"github.com/pefman/ai-fight-club/internal/session"
	"github.com/pefman/ai-fight-club/internal/stats"
)

const (
	defaultSessionTTL      = 24 * time.Hour
	defaultGenerateTimeout = 20 * time.Second
	maxResponseLen         = 8000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service runs the game for every session: phase checks, rounds, results.
type Service struct {
	store   session.Store
	catalog *content.Catalog
	board   *stats.Board
	gen     Generator
	notify  Notifier
	metrics Metrics
	log     *zap.Logger

	ttl             time.Duration
	generateTimeout time.Duration
	now             func() time.Time
	newSeed         func() int64

	locks keyedMutex
}

// keyedMutex serialises work per session id and forgets ids nobody holds.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*refMutex)
	}
	rm, ok := k.m[id]
	if !ok {
		rm = &refMutex{}
		k.m[id] = rm
	}
	rm.refs++
	k.mu.Unlock()

	rm.Lock()
	return func() {
		rm.Unlock()
		k.mu.Lock()
		rm.refs--
		if rm.refs == 0 {
			delete(k.m, id)
		}
		k.mu.Unlock()
	}
}

type Option func(*Service)

// WithGenerator wires the AI backend. Without one every AI step uses its local fallback.
func WithGenerator(g Generator) Option { return func(s *Service) { s.gen = g } }

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notify = n
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSessionTTL sets how long an idle session stays playable.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithGenerateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.generateTimeout = d
		}
	}
}

// WithClock injects a deterministic clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSeeds injects the session seed source for tests.
func WithSeeds(next func() int64) Option {
	return func(s *Service) {
		if next != nil {
			s.newSeed = next
		}
	}
}

func NewService(store session.Store, catalog *content.Catalog, board *stats.Board, opts ...Option) *Service {
	s := &Service{
		store:           store,
		catalog:         catalog,
		board:           board,
		notify:          nopNotifier{},
		metrics:         nopMetrics{},
		log:             zap.NewNop(),
		ttl:             defaultSessionTTL,
		generateTimeout: defaultGenerateTimeout,
		now:             time.Now,
	}
	seeds := rand.New(rand.NewSource(time.Now().UnixNano()))
	var seedMu sync.Mutex
	s.newSeed = func() int64 {
		seedMu.Lock()
		defer seedMu.Unlock()
		return seeds.Int63()
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.Named("game")
	return s
}

func (s *Service) Catalog() *content.Catalog { return s.catalog }
func (s *Service) Board() *stats.Board       { return s.board }

// ========================= Lifecycle =========================

func (s *Service) Create(ctx context.Context) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		Seed:      s.newSeed(),
		Phase:     models.PhaseWelcome,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "could not save session")
	}
	s.metrics.SessionCreated()
	s.log.Info("session created", zap.String("session", sess.ID))
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, apperr.E(apperr.KindNotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "could not load session")
	}
	if s.now().Sub(sess.UpdatedAt) > s.ttl {
		// finished games stay stored so the leaderboard can be rebuilt
		if !sess.Completed() {
			if err := s.store.Delete(ctx, id); err != nil {
				s.log.Warn("dropping expired session", zap.String("session", id), zap.Error(err))
			}
		}
		return nil, apperr.E(apperr.KindNotFound, "session %s expired", id)
	}
	return sess, nil
}

// update loads a session under its lock, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *Service) update(ctx context.Context, id string, fn func(sess *models.Session) error) (*models.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now()
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "could not save session")
	}
	s.notify.SessionUpdated(sess)
	return sess, nil
}

// Reset starts the game over under the same id.
func (s *Service) Reset(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.update(ctx, id, func(sess *models.Session) error {
		*sess = models.Session{
			ID:        sess.ID,
			Seed:      s.newSeed(),
			Phase:     models.PhaseWelcome,
			CreatedAt: sess.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.board.Remove(id)
	s.log.Info("session reset", zap.String("session", id))
	return sess, nil
}

// ========================= Gate =========================

// Gate checks whether the session may show route. Unknown sessions go back
// to the welcome page. If the lookup itself fails, navigation is allowed
// rather than trapping the player.
func (s *Service) Gate(ctx context.Context, id, route string) Decision {
	sess, err := s.Get(ctx, id)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		d := Gate(models.Progress{}, route)
		if d.Phase != "" && d.Phase != models.PhaseWelcome {
			d.Allowed, d.Redirect, d.Missing = false, "/", models.PhaseWelcome
		}
		if !d.Allowed {
			s.metrics.GateRedirect(string(d.Phase))
		}
		return d
	case err != nil:
		s.log.Warn("gate check failed, allowing navigation", zap.String("session", id), zap.String("route", route), zap.Error(err))
		return Decision{Route: NormalizeRoute(route), Phase: RoutePhases[NormalizeRoute(route)], Allowed: true, Degraded: true}
	}
	d := Gate(sess.Progress, route)
	if !d.Allowed {
		s.metrics.GateRedirect(string(d.Phase))
	}
	return d
}

func requirePhase(sess *models.Session, target models.Phase) error {
	if missing := Require(sess.Progress, target); missing != "" {
		return apperr.E(apperr.KindLocked, "complete %s before %s", missing, target)
	}
	return nil
}

// answersLocked: once round 1 has started the assessment answers are final,
// since the challenges and rival were derived from them.
func answersLocked(sess *models.Session) error {
	if sess.Round(1).Started() {
		return apperr.E(apperr.KindLocked, "answers are locked once the first round has started")
	}
	return nil
}

func (s *Service) complete(sess *models.Session, p models.Phase) {
	Advance(sess, p)
	s.metrics.PhaseCompleted(string(p))
}

// ========================= Assessment =========================

func (s *Service) SubmitContext(ctx context.Context, id string, info models.UserInfo) (*models.Session, error) {
	info.Name = strings.TrimSpace(info.Name)
	info.Role = strings.TrimSpace(info.Role)
	info.Industry = strings.TrimSpace(info.Industry)
	info.Goals = strings.TrimSpace(info.Goals)
	if err := validate.Struct(info); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalid, err, "invalid personal context")
	}
	return s.update(ctx, id, func(sess *models.Session) error {
		if err := answersLocked(sess); err != nil {
			return err
		}
		sess.User = &info
		s.complete(sess, models.PhaseContext)
		return nil
	})
}

func (s *Service) SubmitTraits(ctx context.Context, id string, scores []models.TraitScore) (*models.Session, error) {
	if err := s.checkCoverage("trait", len(s.catalog.Traits), len(scores), func(i int) (string, any) {
		return scores[i].TraitID, scores[i]
	}, func(id string) bool { return s.catalog.Trait(id) != nil }); err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(sess *models.Session) error {
		if err := requirePhase(sess, models.PhaseTraits); err != nil {
			return err
		}
		if err := answersLocked(sess); err != nil {
			return err
		}
		sess.Traits = append([]models.TraitScore(nil), scores...)
		s.complete(sess, models.PhaseTraits)
		return nil
	})
}

func (s *Service) SubmitAttitudes(ctx context.Context, id string, scores []models.AttitudeScore) (*models.Session, error) {
	if err := s.checkCoverage("attitude", len(s.catalog.Attitudes), len(scores), func(i int) (string, any) {
		return scores[i].AttitudeID, scores[i]
	}, func(id string) bool { return s.catalog.Attitude(id) != nil }); err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(sess *models.Session) error {
		if err := requirePhase(sess, models.PhaseAttitudes); err != nil {
			return err
		}
		if err := answersLocked(sess); err != nil {
			return err
		}
		sess.Attitudes = append([]models.AttitudeScore(nil), scores...)
		s.complete(sess, models.PhaseAttitudes)
		return nil
	})
}

// checkCoverage demands exactly one valid score per catalog item.
func (s *Service) checkCoverage(what string, want, got int, item func(int) (string, any), known func(string) bool) error {
	seen := make(map[string]bool, got)
	for i := 0; i < got; i++ {
		id, v := item(i)
		if err := validate.Struct(v); err != nil {
			return apperr.Wrap(apperr.KindInvalid, err, fmt.Sprintf("invalid %s score", what))
		}
		if !known(id) {
			return apperr.E(apperr.KindInvalid, "unknown %s %q", what, id)
		}
		if seen[id] {
			return apperr.E(apperr.KindInvalid, "duplicate %s %q", what, id)
		}
		seen[id] = true
	}
	if got != want {
		return apperr.E(apperr.KindInvalid, "expected %d %s scores, got %d", want, what, got)
	}
	return nil
}

func (s *Service) SelectFocus(ctx context.Context, id, focusID string) (*models.Session, error) {
	focus := s.catalog.Focus(strings.TrimSpace(focusID))
	if focus == nil {
		return nil, apperr.E(apperr.KindInvalid, "unknown focus area %q", focusID)
	}
	return s.update(ctx, id, func(sess *models.Session) error {
		if err := requirePhase(sess, models.PhaseFocus); err != nil {
			return err
		}
		if err := answersLocked(sess); err != nil {
			return err
		}
		sess.FocusID = focus.ID
		sess.Rival = engine.PickRival(s.catalog.Rivals, focus.ID, sess.Seed)
		s.complete(sess, models.PhaseFocus)
		return nil
	})
}

// ========================= Rounds =========================

func checkRound(n int) error {
	if n < 1 || n > models.Rounds {
		return apperr.E(apperr.KindInvalid, "round must be 1..%d", models.Rounds)
	}
	return nil
}

// StartRound opens round n: resolves its challenge, rolls the rival's score
// and starts the clock. Calling it again returns the round as it is.
func (s *Service) StartRound(ctx context.Context, id string, n int) (*models.RoundState, error) {
	if err := checkRound(n); err != nil {
		return nil, err
	}
	var (
		rs      *models.RoundState
		started bool
	)
	sess, err := s.update(ctx, id, func(sess *models.Session) error {
		if err := requirePhase(sess, RoundPhase(n)); err != nil {
			return err
		}
		if cur := sess.Round(n); cur.Started() {
			rs = cur
			return nil
		}
		ch := s.challengeFor(ctx, sess, n)
		now := s.now()
		rs = &models.RoundState{
			Round:      n,
			Challenge:  ch,
			StartedAt:  now,
			Deadline:   now.Add(time.Duration(ch.TimeLimit) * time.Second),
			RivalScore: engine.RivalScore(sess.Rival, sess.Seed, n, ch.Difficulty),
		}
		sess.Rounds[n-1] = rs
		started = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if started {
		s.log.Info("round started", zap.String("session", sess.ID), zap.Int("round", n), zap.String("challenge", rs.Challenge.ID))
		s.notify.RoundStarted(sess.ID, n, rs.Deadline)
	}
	return rs, nil
}

// challengeFor picks the authored challenge, else asks the AI backend for
// one, else falls back to a freestyle challenge.
func (s *Service) challengeFor(ctx context.Context, sess *models.Session, n int) *models.Challenge {
	if ch := s.catalog.Challenge(sess.FocusID, n); ch != nil {
		return ch
	}
	focus := s.catalog.Focus(sess.FocusID)
	name, desc := sess.FocusID, ""
	if focus != nil {
		name, desc = focus.Name, focus.Description
	}
	if s.gen != nil {
		exp := ""
		if sess.User != nil {
			exp = sess.User.Experience
		}
		p, err := prompts.BuildChallenge(prompts.ChallengeInput{
			FocusName:        name,
			FocusDescription: desc,
			Round:            n,
			Difficulty:       prompts.DifficultyFor(n),
			Experience:       exp,
		})
		if err == nil {
			var text string
			text, err = s.generate(ctx, p)
			if err == nil {
				var ch *models.Challenge
				if ch, err = prompts.ParseChallenge(text, sess.FocusID, n); err == nil {
					return ch
				}
			}
		}
		s.log.Warn("challenge generation failed, using freestyle", zap.String("session", sess.ID), zap.Int("round", n), zap.Error(err))
	}
	return &models.Challenge{
		ID:          fmt.Sprintf("freestyle-%s-%d", sess.FocusID, n),
		FocusID:     sess.FocusID,
		Round:       n,
		Title:       "Freestyle: " + name,
		Description: fmt.Sprintf("Describe a real problem in %s and how you would use AI to solve it. Be specific about the steps, the checks you would run on the output, and what you would not hand to the AI.", name),
		Criteria:    []string{"Names a concrete problem", "Describes specific steps", "Explains how output is verified"},
		TimeLimit:   240,
		Difficulty:  prompts.DifficultyFor(n),
		Generated:   true,
	}
}

func (s *Service) generate(ctx context.Context, p prompts.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()
	return s.gen.Generate(ctx, p)
}

// SubmitRound scores the answer for round n and settles it against the rival.
// The clock stops when the request arrives, not when the judge answers.
func (s *Service) SubmitRound(ctx context.Context, id string, n int, response string) (*RoundResult, error) {
	at := s.now()
	if err := checkRound(n); err != nil {
		return nil, err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, apperr.E(apperr.KindInvalid, "response is empty")
	}
	if utf8.RuneCountInString(response) > maxResponseLen {
		return nil, apperr.E(apperr.KindInvalid, "response is longer than %d characters", maxResponseLen)
	}
	var res *RoundResult
	sess, err := s.update(ctx, id, func(sess *models.Session) error {
		rs := sess.Round(n)
		if !rs.Started() {
			return apperr.E(apperr.KindLocked, "round %d has not started", n)
		}
		if rs.Submitted() {
			return apperr.E(apperr.KindLocked, "round %d was already submitted", n)
		}
		ev := s.evaluate(ctx, sess, rs, response)
		logs := resolveRound(rs, response, ev, at)
		rs.Taunt = s.taunt(ctx, sess, rs)
		s.complete(sess, RoundPhase(n))
		res = &RoundResult{
			Round:      n,
			Logs:       logs,
			Evaluation: rs.Evaluation,
			Score:      rs.FinalScore,
			RivalScore: rs.RivalScore,
			TimedOut:   rs.TimedOut,
			Outcome:    rs.Outcome,
			Taunt:      rs.Taunt,
			NextRoute:  NextRoute(RoundPhase(n)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.RoundClosed(sess.ID, n)
	s.metrics.RoundOutcome(string(res.Outcome), res.Evaluation.Degraded)
	s.log.Info("round submitted",
		zap.String("session", sess.ID),
		zap.Int("round", n),
		zap.Int("score", res.Score),
		zap.Int("rival", res.RivalScore),
		zap.String("outcome", string(res.Outcome)),
		zap.Bool("degraded", res.Evaluation.Degraded))
	return res, nil
}

func (s *Service) evaluate(ctx context.Context, sess *models.Session, rs *models.RoundState, response string) models.Evaluation {
	if s.gen == nil {
		return engine.HeuristicScore(rs.Challenge, response)
	}
	focusName := sess.FocusID
	if f := s.catalog.Focus(sess.FocusID); f != nil {
		focusName = f.Name
	}
	in := prompts.EvaluationInput{
		FocusArea:   focusName,
		Round:       rs.Round,
		Title:       rs.Challenge.Title,
		Description: rs.Challenge.Description,
		Criteria:    rs.Challenge.Criteria,
		Response:    response,
	}
	if sess.User != nil {
		in.Player = &prompts.PlayerContext{Role: sess.User.Role, Industry: sess.User.Industry, Experience: sess.User.Experience}
	}
	p, err := prompts.BuildEvaluation(in)
	if err == nil {
		var text string
		if text, err = s.generate(ctx, p); err == nil {
			var ev models.Evaluation
			if ev, err = prompts.ParseEvaluation(text); err == nil {
				return ev
			}
		}
	}
	s.log.Warn("judge unavailable, scoring locally", zap.String("session", sess.ID), zap.Int("round", rs.Round), zap.Error(err))
	return engine.HeuristicScore(rs.Challenge, response)
}

func (s *Service) taunt(ctx context.Context, sess *models.Session, rs *models.RoundState) string {
	if sess.Rival == nil {
		return ""
	}
	if s.gen != nil {
		p, err := prompts.BuildRivalTaunt(prompts.TauntInput{
			RivalName:   sess.Rival.Name,
			Personality: sess.Rival.Personality,
			Round:       rs.Round,
			PlayerScore: rs.FinalScore,
			RivalScore:  rs.RivalScore,
			Outcome:     string(rs.Outcome),
		})
		if err == nil {
			var text string
			if text, err = s.generate(ctx, p); err == nil {
				if line := prompts.CleanLine(text); line != "" {
					return line
				}
			}
		}
		s.log.Debug("taunt generation failed, using canned line", zap.Error(err))
	}
	return engine.Taunt(sess.Rival, sess.Seed, rs.Round, rs.Outcome)
}

// ========================= Results =========================

// Results finalises a finished game once; later calls return the stored
// results with a fresh leaderboard rank.
func (s *Service) Results(ctx context.Context, id string) (*models.Results, error) {
	var fresh bool
	sess, err := s.update(ctx, id, func(sess *models.Session) error {
		if err := requirePhase(sess, models.PhaseResults); err != nil {
			return err
		}
		if sess.Results != nil {
			return nil
		}
		fresh = true
		now := s.now()
		total, points, wins, losses, draws := tally(sess)
		res := &models.Results{
			TotalScore:  total,
			Points:      points,
			Wins:        wins,
			Losses:      losses,
			Draws:       draws,
			Archetype:   Archetype(sess.Attitudes, func(id string) bool { a := s.catalog.Attitude(id); return a != nil && a.Reverse }),
			TopTraits:   s.traitNames(TopTraits(sess.Traits, 2, s.catalog.TraitIDs())),
			Badges:      badges.Award(sess, now),
			CompletedAt: now,
		}
		res.Narrative = s.narrative(ctx, sess, res)
		sess.Results = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fresh {
		s.board.Record(EntryFor(sess))
		s.log.Info("game finished", zap.String("session", sess.ID), zap.Int("points", sess.Results.Points))
	}
	out := *sess.Results
	out.Rank = s.board.Rank(sess.ID)
	return &out, nil
}

func (s *Service) traitNames(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := s.catalog.Trait(id); t != nil {
			out = append(out, t.Name)
		} else {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) narrative(ctx context.Context, sess *models.Session, res *models.Results) string {
	if s.gen != nil {
		in := prompts.ResultsInput{
			Name:      sess.DisplayName(),
			Archetype: res.Archetype,
			TopTraits: res.TopTraits,
			Badges:    badges.Names(res.Badges),
		}
		for _, r := range sess.Rounds {
			in.Rounds = append(in.Rounds, prompts.RoundSummary{
				Round: r.Round, Title: r.Challenge.Title, Score: r.FinalScore, RivalScore: r.RivalScore, Outcome: string(r.Outcome),
			})
		}
		p, err := prompts.BuildResultsSummary(in)
		if err == nil {
			var text string
			if text, err = s.generate(ctx, p); err == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
		s.log.Warn("results narrative failed, using summary", zap.String("session", sess.ID), zap.Error(err))
	}
	rival := "your rival"
	if sess.Rival != nil {
		rival = sess.Rival.Name
	}
	return fmt.Sprintf("%s, you finished with %d points against %s: %d win(s), %d loss(es), %d draw(s). Your attitude profile reads %s.",
		sess.DisplayName(), res.Points, rival, res.Wins, res.Losses, res.Draws, res.Archetype)
}

// EntryFor builds the leaderboard row of a finished session.
func EntryFor(sess *models.Session) models.LeaderboardEntry {
	return models.LeaderboardEntry{
		SessionID:   sess.ID,
		Name:        sess.DisplayName(),
		Score:       sess.Results.Points,
		FocusID:     sess.FocusID,
		Badges:      len(sess.Results.Badges),
		Wins:        sess.Results.Wins,
		CompletedAt: sess.Results.CompletedAt,
	}
}

// LoadLeaderboard fills the board from finished sessions in the store and,
// when mock > 0, that many demo entries.
func (s *Service) LoadLeaderboard(ctx context.Context, mock int, seed int64) error {
	done, err := s.store.ListCompleted(ctx)
	if err != nil {
		return fmt.Errorf("load finished sessions: %w", err)
	}
	for _, sess := range done {
		s.board.Record(EntryFor(sess))
	}
	for _, e := range engine.MockLeaderboard(mock, seed, s.catalog.FocusIDs(), s.now()) {
		s.board.Record(e)
	}
	s.log.Info("leaderboard loaded", zap.Int("sessions", len(done)), zap.Int("mock", mock))
	return nil
}
