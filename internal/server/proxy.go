package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"
)

// NewBackendProxy forwards requests unchanged to the AI backend, so the
// browser can reach it through the game's origin. Backend failures come back
// in the standard error shape.
func NewBackendProxy(backendURL string, log *zap.Logger) (http.Handler, error) {
	target, err := url.Parse(backendURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", backendURL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("proxy")
	p := httputil.NewSingleHostReverseProxy(target)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("backend unreachable", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, "ai backend is unavailable")
	}
	return p, nil
}
