package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/middleware"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
	"github.com/DilipViharika/PostgresTool-sub003/internal/repository"
	"github.com/DilipViharika/PostgresTool-sub003/internal/service"
	"github.com/DilipViharika/PostgresTool-sub003/internal/websocket"

	"github.com/gorilla/mux"
)

type AlertHandler struct {
	alertService service.IAlertService
	hub          *websocket.Hub
	log          *logger.Logger
}

func NewAlertHandler(alertService service.IAlertService, hub *websocket.Hub, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		hub:          hub,
		log:          log,
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts/recent", h.GetRecent).Methods("GET")
	r.HandleFunc("/alerts/statistics", h.GetStatistics).Methods("GET")
	r.HandleFunc("/alerts/acknowledge/{id}", h.Acknowledge).Methods("PUT")
	r.HandleFunc("/alerts/acknowledge", h.BulkAcknowledge).Methods("PUT")
	r.HandleFunc("/alerts/fire", h.Fire).Methods("POST")
	r.HandleFunc("/alerts/cleanup", h.Cleanup).Methods("DELETE")
	r.HandleFunc("/ws", h.Subscribe).Methods("GET")
}

func (h *AlertHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	includeAcknowledged := false

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("include_acknowledged"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			includeAcknowledged = parsed
		}
	}

	alerts, err := h.alertService.GetRecent(r.Context(), limit, includeAcknowledged)
	if err != nil {
		h.log.Error("Failed to get recent alerts: %v", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	respondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	rangeName := r.URL.Query().Get("range")
	if rangeName == "" {
		rangeName = "24h"
	}

	stats, err := h.alertService.GetStatistics(r.Context(), rangeName)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("Failed to get alert statistics: %v", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	actor := middleware.ActorFromContext(r.Context())

	alert, err := h.alertService.Acknowledge(r.Context(), id, actor.ID, actor.Name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.log.Error("Failed to acknowledge alert %d: %v", id, err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

type bulkAcknowledgeRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *AlertHandler) BulkAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req bulkAcknowledgeRequest
	if err := decodeJSON(r, &req); err != nil || len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "body must contain a non-empty ids array")
		return
	}

	actor := middleware.ActorFromContext(r.Context())

	alerts, err := h.alertService.BulkAcknowledge(r.Context(), req.IDs, actor.ID, actor.Name)
	if err != nil {
		h.log.Error("Failed to bulk acknowledge alerts: %v", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

type fireRequest struct {
	Severity      string                 `json:"severity"`
	Category      string                 `json:"category"`
	Message       string                 `json:"message"`
	Data          map[string]interface{} `json:"data"`
	Discriminator string                 `json:"discriminator"`
}

// Fire triggers an alert manually. It goes through the same dedup →
// broadcast → notify pipeline as probe-triggered alerts.
func (h *AlertHandler) Fire(w http.ResponseWriter, r *http.Request) {
	var req fireRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid fire payload")
		return
	}
	if req.Category == "" {
		req.Category = models.CategoryManual
	}

	alert, created, err := h.alertService.Fire(r.Context(),
		req.Severity, req.Category, req.Message, req.Data, req.Discriminator)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("Manual fire failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, alert)
}

func (h *AlertHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("older_than_days"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "older_than_days must be an integer")
		return
	}

	count, err := h.alertService.Cleanup(r.Context(), days)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("Cleanup failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"deleted": count})
}

// Subscribe attaches a realtime observer. The hub pushes a snapshot of
// open alerts to the new subscriber immediately after registration.
func (h *AlertHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, w, r, h.log)
}
