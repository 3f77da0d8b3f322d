package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/soclens/soclens/internal/handlers"
	"github.com/soclens/soclens/internal/hub"
	"github.com/soclens/soclens/internal/middleware"
)

// NewRouter constructs the backend's HTTP handler: REST API, the live
// WebSocket endpoint and operational endpoints, wrapped in CORS and
// request-ID middleware.
func NewRouter(h *handlers.Handler, liveHub *hub.Hub, corsOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/alerts", h.ListAlerts)
	mux.HandleFunc("GET /api/agents", h.ListAgents)
	mux.HandleFunc("GET /api/events", h.ListEvents)
	mux.HandleFunc("GET /api/events/stats", h.EventStats)
	mux.HandleFunc("GET /api/events/chart", h.EventsChart)
	mux.HandleFunc("GET /api/agents/overview", h.AgentOverview)
	mux.HandleFunc("POST /api/webhook", h.IngestWebhook)

	mux.HandleFunc("GET /ws", liveHub.ServeWS)

	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.HandleFunc("GET /readyz", h.ReadyCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return middleware.RequestID(c.Handler(mux))
}
