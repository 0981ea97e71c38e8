package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/apperr"
)

const maxBodyBytes = 64 << 10

// errorResponse is the one error shape every endpoint returns. Retry tells
// the client a later attempt may succeed.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Retry   bool   `json:"retry,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(code),
		Message: msg,
		Status:  code,
		Retry:   code >= 500,
	})
}

// writeAppError maps a classified error to its status. Unclassified errors
// are logged and reported as a generic internal error.
func writeAppError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := apperr.HTTPStatus(err)
	if code >= 500 {
		log.Error("request failed", zap.Int("status", code), zap.Error(err))
	}
	writeError(w, code, apperr.Message(err))
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return apperr.E(apperr.KindInvalid, "request body too large")
		case errors.Is(err, io.EOF):
			return apperr.E(apperr.KindInvalid, "request body is empty")
		default:
			return apperr.Wrap(apperr.KindInvalid, err, "invalid JSON")
		}
	}
	return nil
}

// jsonMisses makes unmatched paths and methods answer in the error shape.
func jsonMisses(r *mux.Router) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}
