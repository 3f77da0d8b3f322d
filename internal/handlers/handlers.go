// Package handlers implements the REST surface of the dashboard backend.
// Live endpoints answer from the in-memory caches; historical endpoints
// query the Postgres mirror when it is enabled.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/soclens/soclens/internal/cache"
	"github.com/soclens/soclens/internal/httputil"
	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/metrics"
	"github.com/soclens/soclens/internal/model"
	"github.com/soclens/soclens/internal/normalize"
	"github.com/soclens/soclens/internal/pipeline"
	"github.com/soclens/soclens/internal/store"
)

// Handler serves the dashboard API.
type Handler struct {
	alerts       *cache.Cache
	agents       *cache.Cache
	store        *store.PostgresStore // nil when the mirror is disabled
	alertSinks   []pipeline.Sink
	offlineAfter time.Duration
	log          *logging.Logger
}

// New constructs a Handler. store may be nil; historical endpoints then
// answer 503. alertSinks receive events pushed over the webhook endpoint.
func New(alerts, agents *cache.Cache, s *store.PostgresStore, alertSinks []pipeline.Sink, offlineAfter time.Duration, log *logging.Logger) *Handler {
	return &Handler{
		alerts:       alerts,
		agents:       agents,
		store:        s,
		alertSinks:   alertSinks,
		offlineAfter: offlineAfter,
		log:          log,
	}
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "soclens"})
}

// ReadyCheck handles GET /readyz. The process is ready once it serves;
// the body reports how warm the live caches are so orchestration and
// humans can tell a cold start from a populated one.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"cachedAlerts": h.alerts.Len(),
		"cachedAgents": h.agents.Len(),
	})
}

// ListAlerts handles GET /api/alerts. It answers from the live cache,
// newest first, so the endpoint works even when the document store is
// disabled or still warming up.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), h.alerts.Capacity())

	snapshot := h.alerts.Snapshot()
	if limit < len(snapshot) {
		snapshot = snapshot[:limit]
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"alerts": snapshot,
		"count":  len(snapshot),
	})
}

// ListAgents handles GET /api/agents from the live agent cache.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	snapshot := h.agents.Snapshot()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"agents": snapshot,
		"count":  len(snapshot),
	})
}

// IngestWebhook handles POST /api/webhook. Pushed events travel the same
// path as polled and syslog ones: into the alert cache and out to every
// sink, so connected sessions see them immediately.
func (h *Handler) IngestWebhook(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	event := normalize.Webhook(raw, time.Now().UTC())
	metrics.WebhookEvents.Inc()

	delta := []model.Entity{event}
	h.alerts.InsertBatch(delta)
	metrics.CacheSize.WithLabelValues(model.StreamAlerts).Set(float64(h.alerts.Len()))

	for _, sink := range h.alertSinks {
		if err := sink.Deliver(r.Context(), model.StreamAlerts, delta); err != nil {
			h.log.ErrorContext(r.Context(), "webhook sink delivery failed", "error", err)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Event received"})
}

// ListEvents handles GET /api/events against the document store.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "Document store is not enabled")
		return
	}

	filter := store.EventFilter{
		Limit:    parseInt(r.URL.Query().Get("limit"), 100),
		Offset:   parseInt(r.URL.Query().Get("offset"), 0),
		MinLevel: parseInt(r.URL.Query().Get("minLevel"), 0),
		AgentID:  r.URL.Query().Get("agentId"),
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list events", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []model.NormalizedEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// EventStats handles GET /api/events/stats.
func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "Document store is not enabled")
		return
	}

	stats, err := h.store.EventStats(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to aggregate stats", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to aggregate stats")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// EventsChart handles GET /api/events/chart?range=24h. Accepted ranges are
// 1h, 24h, 7d and 30d; anything else falls back to 24h.
func (h *Handler) EventsChart(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "Document store is not enabled")
		return
	}

	since := time.Now().Add(-chartRange(r.URL.Query().Get("range")))
	buckets, err := h.store.EventsChart(r.Context(), since)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to query chart", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to query chart")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

// AgentOverview handles GET /api/agents/overview.
func (h *Handler) AgentOverview(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "Document store is not enabled")
		return
	}

	summaries, err := h.store.AgentOverview(r.Context(), h.offlineAfter)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to query agent overview", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to query agent overview")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"agents": summaries})
}

func chartRange(s string) time.Duration {
	switch s {
	case "1h":
		return time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
