// Package server exposes the game over HTTP and websockets.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/apperr"
	"github.com/pefman/ai-fight-club/internal/badges"
	"github.com/pefman/ai-fight-club/internal/game"
	"github.com/pefman/ai-fight-club/internal/models"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// HealthChecker reports whether the AI backend answers.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Options struct {
	Service       *game.Service
	Hub           *Hub
	Proxy         http.Handler
	Backend       HealthChecker
	Metrics       http.Handler
	Observer      RequestObserver
	AllowedOrigin string
	Version       string
	Logger        *zap.Logger
}

type Server struct {
	svc     *game.Service
	hub     *Hub
	proxy   http.Handler
	backend HealthChecker
	metrics http.Handler
	obs     RequestObserver
	origin  string
	version string
	log     *zap.Logger
	now     func() time.Time
	started time.Time
}

func New(o Options) *Server {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		svc:     o.Service,
		hub:     o.Hub,
		proxy:   o.Proxy,
		backend: o.Backend,
		metrics: o.Metrics,
		obs:     o.Observer,
		origin:  o.AllowedOrigin,
		version: o.Version,
		log:     log.Named("http"),
		now:     time.Now,
		started: time.Now(),
	}
}

// ownedPrefixes are the /api paths the game answers itself; everything else
// under /api goes to the backend.
var ownedPrefixes = []string{"/api/sessions", "/api/catalog", "/api/badges", "/api/leaderboard"}

func owned(path string) bool {
	for _, p := range ownedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Handler builds the router wrapped in the error boundary and CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(withAccessLog(s.log, s.obs))
	jsonMisses(r)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	if s.hub != nil {
		r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	}

	// a subrouter reports its own misses; without these a method mismatch
	// under /api would surface as 404
	api := r.PathPrefix("/api").Subrouter()
	jsonMisses(api)
	api.HandleFunc("/sessions", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/gate", s.handleGate).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/context", s.handleContext).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/traits", s.handleTraits).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/attitudes", s.handleAttitudes).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/focus", s.handleFocus).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/rounds/{n:[0-9]+}", s.handleStartRound).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/rounds/{n:[0-9]+}", s.handleSubmitRound).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/results", s.handleResults).Methods(http.MethodGet)
	api.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)
	api.HandleFunc("/badges", s.handleBadges).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard/daily", s.handleDaily).Methods(http.MethodGet)

	if s.proxy != nil {
		api.PathPrefix("/").MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
			return !owned(req.URL.Path)
		}).Handler(s.proxy)
	}

	return withRecover(s.log, withCORS(s.origin, r))
}

// ========================= Sessions =========================

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Create(r.Context())
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewSession(sess))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, func() (*models.Session, error) {
		return s.svc.Reset(r.Context(), mux.Vars(r)["id"])
	})
}

func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Query().Get("route")
	if route == "" {
		writeError(w, http.StatusBadRequest, "route is required")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Gate(r.Context(), mux.Vars(r)["id"], route))
}

func (s *Server) respondSession(w http.ResponseWriter, op func() (*models.Session, error)) {
	sess, err := op()
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var in models.UserInfo
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, s.log, err)
		return
	}
	s.respondSession(w, func() (*models.Session, error) {
		return s.svc.SubmitContext(r.Context(), mux.Vars(r)["id"], in)
	})
}

func (s *Server) handleTraits(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Scores []models.TraitScore `json:"scores"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, s.log, err)
		return
	}
	s.respondSession(w, func() (*models.Session, error) {
		return s.svc.SubmitTraits(r.Context(), mux.Vars(r)["id"], in.Scores)
	})
}

func (s *Server) handleAttitudes(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Scores []models.AttitudeScore `json:"scores"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, s.log, err)
		return
	}
	s.respondSession(w, func() (*models.Session, error) {
		return s.svc.SubmitAttitudes(r.Context(), mux.Vars(r)["id"], in.Scores)
	})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FocusID string `json:"focus_id"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, s.log, err)
		return
	}
	s.respondSession(w, func() (*models.Session, error) {
		return s.svc.SelectFocus(r.Context(), mux.Vars(r)["id"], in.FocusID)
	})
}

// ========================= Rounds =========================

func roundNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		return 0, apperr.E(apperr.KindInvalid, "round must be a number")
	}
	return n, nil
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	n, err := roundNumber(r)
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	rs, err := s.svc.StartRound(r.Context(), mux.Vars(r)["id"], n)
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, viewRound(rs, s.now()))
}

func (s *Server) handleSubmitRound(w http.ResponseWriter, r *http.Request) {
	n, err := roundNumber(r)
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	var in struct {
		Response string `json:"response"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeAppError(w, s.log, err)
		return
	}
	res, err := s.svc.SubmitRound(r.Context(), mux.Vars(r)["id"], n, in.Response)
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Results(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ========================= Catalog & leaderboard =========================

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Catalog())
}

func (s *Server) handleBadges(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, badges.Catalog())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultLeaderboardLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}
	focus := strings.TrimSpace(q.Get("focus"))
	if focus != "" && s.svc.Catalog().Focus(focus) == nil {
		writeError(w, http.StatusBadRequest, "unknown focus area")
		return
	}
	entries := s.svc.Board().Top(limit, focus)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   s.svc.Board().Len(),
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Board().Daily())
}

// ========================= Live stream & ops =========================

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session is required")
		return
	}
	sess, err := s.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, s.log, err)
		return
	}
	s.hub.Serve(w, r, sess)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := "disabled"
	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		backend = "ok"
		if err := s.backend.Health(ctx); err != nil {
			backend = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": backend,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}
