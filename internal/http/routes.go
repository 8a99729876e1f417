package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/infoboard/internal/observability"
)

// RouterConfig holds the per-route middleware settings.
type RouterConfig struct {
	// Limiter guards the API routes; nil disables rate limiting.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewRouter mounts the API under rate limiting and a request deadline, and
// /health and /metrics without either.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(cfg.Logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/bus", h.GetBus).Methods("GET")
	api.HandleFunc("/weather", h.GetWeather).Methods("GET")
	api.HandleFunc("/air", h.GetAir).Methods("GET")
	api.HandleFunc("/tasks", h.GetTasks).Methods("GET")
	api.HandleFunc("/board", h.GetBoard).Methods("GET")
	return router
}
