package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/api"
	"github.com/pefman/ai-fight-club/internal/game"
	"github.com/pefman/ai-fight-club/internal/prompts"
)

const maxPromptChars = 32000

// NewBackendHandler serves the AI backend: POST /api/generate turns a
// {system, prompt} pair into {text, model}. A non-nil metrics handler is
// mounted at /metrics.
func NewBackendHandler(gen game.Generator, model string, metrics http.Handler, log *zap.Logger, obs RequestObserver, allowedOrigin string) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")
	r := mux.NewRouter()
	r.Use(withAccessLog(log, obs))
	jsonMisses(r)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "model": model})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/generate", func(w http.ResponseWriter, req *http.Request) {
		var p prompts.Prompt
		if err := decodeJSON(w, req, &p); err != nil {
			writeAppError(w, log, err)
			return
		}
		if strings.TrimSpace(p.User) == "" {
			writeError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		if len(p.System)+len(p.User) > maxPromptChars {
			writeError(w, http.StatusBadRequest, "prompt is too long")
			return
		}
		text, err := gen.Generate(req.Context(), p)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, api.GenerateResponse{Text: text, Model: model})
	}).Methods(http.MethodPost)

	return withRecover(log, withCORS(allowedOrigin, r))
}
