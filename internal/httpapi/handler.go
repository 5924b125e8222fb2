// Package httpapi exposes the monitor's status, measurement history
// and live vitals over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/oxitrack/pulse-monitor/internal/alert"
	"github.com/oxitrack/pulse-monitor/internal/session"
	"github.com/oxitrack/pulse-monitor/internal/storage"
	"github.com/oxitrack/pulse-monitor/internal/telemetry"
)

// Handler serves the REST and WebSocket surface. Repo and cache are
// nil when persistence is not configured; the matching endpoints
// answer 503.
type Handler struct {
	monitor *session.Monitor
	alerts  *alert.Controller
	repo    *storage.MeasurementRepository
	cache   *storage.VitalsCache
	hub     *telemetry.Hub
	logger  *zap.Logger
}

// NewHandler wires the API against its backends.
func NewHandler(monitor *session.Monitor, alerts *alert.Controller, repo *storage.MeasurementRepository, cache *storage.VitalsCache, hub *telemetry.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		monitor: monitor,
		alerts:  alerts,
		repo:    repo,
		cache:   cache,
		hub:     hub,
		logger:  logger,
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/status", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/measurements", h.handleListMeasurements).Methods(http.MethodGet)
	r.HandleFunc("/api/measurements/{id}", h.handleGetMeasurement).Methods(http.MethodGet)
	r.HandleFunc("/api/vitals/latest", h.handleLatestVitals).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.hub.HandleWebSocket)
}

type statusResponse struct {
	State       string          `json:"state"`
	AlertActive bool            `json:"alert_active"`
	Stats       session.Stats   `json:"stats"`
	Last        *session.Result `json:"last_measurement,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, statusResponse{
		State:       h.monitor.State().String(),
		AlertActive: h.alerts.Active(),
		Stats:       h.monitor.Stats(),
		Last:        h.monitor.LastResult(),
	})
}

func (h *Handler) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.respondError(w, http.StatusServiceUnavailable, "measurement history is not configured")
		return
	}

	limit := getQueryInt(r, "limit", 50)
	offset := getQueryInt(r, "offset", 0)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	measurements, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list measurements", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list measurements")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"measurements": measurements,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *Handler) handleGetMeasurement(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.respondError(w, http.StatusServiceUnavailable, "measurement history is not configured")
		return
	}

	id := mux.Vars(r)["id"]
	m, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "measurement not found")
		return
	}

	h.respondJSON(w, http.StatusOK, m)
}

func (h *Handler) handleLatestVitals(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.respondError(w, http.StatusServiceUnavailable, "vitals cache is not configured")
		return
	}

	v, err := h.cache.Latest(r.Context())
	if err != nil {
		h.respondError(w, http.StatusNotFound, "no recent vitals")
		return
	}

	h.respondJSON(w, http.StatusOK, v)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func getQueryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
