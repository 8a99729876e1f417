package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/infoboard/internal/board"
	"github.com/kjstillabower/infoboard/internal/client"
	"github.com/kjstillabower/infoboard/internal/lifecycle"
	"github.com/kjstillabower/infoboard/internal/models"
	"github.com/kjstillabower/infoboard/internal/observability"
	"github.com/kjstillabower/infoboard/internal/traffic"
	"github.com/kjstillabower/infoboard/internal/validation"
)

const (
	maxIdentifierLength = 32
	maxLimit            = 50
)

// Composer is implemented by *board.Board.
type Composer interface {
	Compose(ctx context.Context) models.Board
}

// Sources are the pipeline entry points the handlers call.
type Sources struct {
	Transit board.ArrivalSource
	Weather board.WeatherSource
	Tasks   board.TaskSource
	Board   Composer
}

// HealthConfig holds the inputs for the health handler. Function fields may be nil.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	// Configured reports per source whether credentials are present.
	Configured map[string]bool
	// BreakerStates returns the upstream circuit breaker state per source.
	BreakerStates func() map[string]string
	// CachePing, when set, is called to check cache reachability. Used for memcached and redis.
	CachePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sources          Sources
	defaults         board.Sources
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. defaults carries the configured
// credentials and the identifiers used when a request does not name its own.
func NewHandler(sources Sources, defaults board.Sources, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		sources:      sources,
		defaults:     defaults,
		healthConfig: healthConfig,
		logger:       observability.OrNop(logger),
	}
}

// GetBus handles GET /bus?city=&node=&limit=&dedup=.
func (h *Handler) GetBus(w http.ResponseWriter, r *http.Request) {
	q := h.defaults.Transit
	params := r.URL.Query()
	if v := params.Get("city"); v != "" {
		city, err := validation.ValidateIdentifier("city", v, maxIdentifierLength)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_STOP", err.Error())
			return
		}
		q.CityCode = city
	}
	if v := params.Get("node"); v != "" {
		node, err := validation.ValidateIdentifier("node", v, maxIdentifierLength)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_STOP", err.Error())
			return
		}
		q.NodeID = node
	}
	limit, err := validation.ParseLimit(params.Get("limit"), maxLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LIMIT", err.Error())
		return
	}
	if limit > 0 {
		q.Limit = limit
	}
	if v := params.Get("dedup"); v != "" {
		dedup, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_DEDUP", "dedup must be true or false")
			return
		}
		q.DedupByRoute = &dedup
	}

	result, err := h.sources.Transit.Arrivals(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	traffic.Record(traffic.Success)
	writeJSON(w, http.StatusOK, result)
}

// GetWeather handles GET /weather?location=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	snap, err := h.sources.Weather.Snapshot(r.Context(), h.defaults.WeatherAPIKey, location)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	traffic.Record(traffic.Success)
	writeJSON(w, http.StatusOK, snap)
}

// GetAir handles GET /air?location=.
func (h *Handler) GetAir(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	aq, err := h.sources.Weather.AirQuality(r.Context(), h.defaults.WeatherAPIKey, location)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	traffic.Record(traffic.Success)
	writeJSON(w, http.StatusOK, aq)
}

// location returns the requested or configured location. An empty result
// is passed through so the aggregator reports missing configuration.
func (h *Handler) location(w http.ResponseWriter, r *http.Request) (string, bool) {
	v := r.URL.Query().Get("location")
	if v == "" {
		return h.defaults.WeatherLocation, true
	}
	location, err := validation.ValidateLocation(v, validation.MaxLocationLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return "", false
	}
	return location, true
}

type tasksResponse struct {
	Tasks              []models.TaskRecord `json:"tasks"`
	NeedsConfiguration bool                `json:"needsConfiguration"`
}

// GetTasks handles GET /tasks?project=&limit=.
func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	q := h.defaults.Tasks
	params := r.URL.Query()
	if v := params.Get("project"); v != "" {
		project, err := validation.ValidateIdentifier("project", v, maxIdentifierLength)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_PROJECT", err.Error())
			return
		}
		q.ProjectID = project
	}
	limit, err := validation.ParseLimit(params.Get("limit"), maxLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LIMIT", err.Error())
		return
	}
	if limit > 0 {
		q.Limit = limit
	}

	list, err := h.sources.Tasks.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	traffic.Record(traffic.Success)
	writeJSON(w, http.StatusOK, tasksResponse{Tasks: list, NeedsConfiguration: q.Token == ""})
}

// GetBoard handles GET /board. Section failures are reported inside the body.
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	view := h.sources.Board.Compose(r.Context())
	outcome := traffic.Success
	for _, se := range []*models.SectionError{view.BusError, view.WeatherError, view.AirError, view.TasksError} {
		if se != nil && countsAsFailure(client.ErrorCategory(se.Category)) {
			outcome = traffic.Failure
			break
		}
	}
	traffic.Record(outcome)
	writeJSON(w, http.StatusOK, view)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	var configured map[string]bool
	if h.healthConfig != nil {
		configured = h.healthConfig.Configured
		if h.healthConfig.BreakerStates != nil {
			for source, state := range h.healthConfig.BreakerStates() {
				checks["upstream."+source] = state
			}
		}
		if h.healthConfig.CachePing != nil {
			if h.healthConfig.CachePing(r.Context()) == nil {
				checks["cache"] = "healthy"
			} else {
				checks["cache"] = "unhealthy"
			}
		}
	}
	resp := map[string]interface{}{
		"status":     result.status,
		"service":    "infoboard",
		"version":    "dev",
		"checks":     checks,
		"configured": configured,
		"uptime":     lifecycle.Uptime(time.Now()).Round(time.Second).String(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > degraded (error rate) > healthy.
// An open breaker shows in checks but does not on its own degrade the service,
// since the other sections keep working.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

type unavailableResponse struct {
	NeedsConfiguration bool   `json:"needsConfiguration"`
	Unavailable        bool   `json:"unavailable"`
	Reason             string `json:"reason"`
}

// writeServiceError maps a pipeline error to a response by category and
// records the outcome for the degraded check. Missing configuration is not an
// error for the caller: it gets 200 with an explicit unavailable body.
func writeServiceError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) {
	category := client.CategorizeError(err)
	logger := observability.LoggerFrom(r.Context(), fallback)
	if countsAsFailure(category) {
		traffic.Record(traffic.Failure)
		logger.Warn("upstream error", zap.String("category", string(category)), zap.Error(err))
	} else {
		logger.Debug("request not served", zap.String("category", string(category)), zap.Error(err))
	}

	switch category {
	case client.ErrorCategoryMissingConfiguration:
		writeJSON(w, http.StatusOK, unavailableResponse{NeedsConfiguration: true, Unavailable: true, Reason: string(category)})
	case client.ErrorCategoryInvalidCredential:
		writeError(w, r, http.StatusBadGateway, "INVALID_CREDENTIAL", "Upstream rejected the configured credential")
	case client.ErrorCategoryLocationNotFound:
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "Location not found")
	case client.ErrorCategoryParsing:
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_PARSE", "Upstream returned an unexpected response")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch upstream data")
	}
}

// countsAsFailure reports whether an error category reflects an upstream or
// service fault rather than configuration, a bad query or a departed client.
func countsAsFailure(category client.ErrorCategory) bool {
	switch category {
	case client.ErrorCategoryMissingConfiguration, client.ErrorCategoryLocationNotFound, client.ErrorCategoryCanceled, "":
		return false
	}
	return true
}
