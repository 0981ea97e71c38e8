package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.SessionCreated()
	m.SessionCreated()
	m.PhaseCompleted("CONTEXT")
	m.GateRedirect("RESULTS")
	m.RoundOutcome("win", true)
	m.BackendCall("ok", 300*time.Millisecond)
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	m.ObserveRequest("/api/sessions", http.MethodPost, 201, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.phasesCompleted.WithLabelValues("CONTEXT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateRedirects.WithLabelValues("RESULTS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.roundOutcomes.WithLabelValues("win", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/sessions", "POST", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.backendCalls))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	m.SessionCreated()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fightclub_sessions_created_total 1")
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNewMetrics(reg)
	assert.Panics(t, func() { MustNewMetrics(reg) })
}
