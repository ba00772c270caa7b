package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/metrics"
	"github.com/segyhp/lead-intake/pkg/response"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Applications *ApplicationHandler
	Admin        *AdminHandler
	Health       *HealthHandler
	Sessions     SessionVerifier
	Metrics      *metrics.Metrics
	// RateLimit guards the unauthenticated POST routes; nil disables it.
	RateLimit  *RateLimiter
	Logger     *zap.Logger
	CORSOrigin string
}

// NewRouter mounts every route. CORS wraps the router itself so preflight
// requests are answered before method matching and session checks.
func NewRouter(h Handlers) http.Handler {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(h.Logger))
	if h.Metrics != nil {
		router.Use(h.Metrics.Middleware)
		router.Handle("/metrics", h.Metrics.Handler()).Methods(http.MethodGet)
	}

	// Health check
	router.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Health.Ready).Methods(http.MethodGet)

	// Public intake
	submit := h.RateLimit.Middleware(http.HandlerFunc(h.Applications.Submit))
	router.Handle("/apply", submit).Methods(http.MethodPost)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Handle("/apply", submit).Methods(http.MethodPost)

	// Admin session
	router.Handle("/admin/login", h.RateLimit.Middleware(http.HandlerFunc(h.Admin.Login))).Methods(http.MethodPost)
	router.HandleFunc("/admin/logout", h.Admin.Logout).Methods(http.MethodPost)

	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(SessionMiddleware(h.Sessions))
	admin.HandleFunc("/verify", h.Admin.Verify).Methods(http.MethodGet)
	admin.HandleFunc("/applications", h.Admin.List).Methods(http.MethodGet)
	admin.HandleFunc("/applications/stream", h.Admin.Stream).Methods(http.MethodGet)
	admin.HandleFunc("/applications/{id}", h.Admin.Detail).Methods(http.MethodGet)
	admin.HandleFunc("/applications/{id}/status", h.Admin.UpdateStatus).Methods(http.MethodPatch)

	return response.CORSMiddleware(h.CORSOrigin)(router)
}
