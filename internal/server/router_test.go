package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soclens/soclens/internal/cache"
	"github.com/soclens/soclens/internal/handlers"
	"github.com/soclens/soclens/internal/hub"
	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/model"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	alerts := cache.New(100)
	agents := cache.New(100)
	liveHub := hub.New(
		[]hub.Stream{{Name: model.StreamAlerts, Snapshot: alerts.Snapshot}},
		hub.Options{},
		logging.Default(),
	)
	t.Cleanup(liveHub.Close)
	h := handlers.New(alerts, agents, nil, nil, 5*time.Minute, logging.Default())
	return NewRouter(h, liveHub, []string{"http://localhost:3000"})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/api/alerts", http.StatusOK},
		{"/api/agents", http.StatusOK},
		{"/api/events", http.StatusServiceUnavailable},
		{"/api/events/stats", http.StatusServiceUnavailable},
		{"/api/events/chart", http.StatusServiceUnavailable},
		{"/api/agents/overview", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/alerts", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_WebhookAccepted(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"severity":7}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_SetsRequestID(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
