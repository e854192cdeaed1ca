package handler

import (
	"net/http"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/service"

	"github.com/gorilla/mux"
)

type MonitorHandler struct {
	monitor         *service.MonitorService
	defaultInterval time.Duration
	log             *logger.Logger
}

func NewMonitorHandler(monitor *service.MonitorService, defaultInterval time.Duration, log *logger.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor:         monitor,
		defaultInterval: defaultInterval,
		log:             log,
	}
}

func (h *MonitorHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/monitor/start", h.Start).Methods("POST")
	r.HandleFunc("/monitor/stop", h.Stop).Methods("POST")
	r.HandleFunc("/monitor/status", h.Status).Methods("GET")
}

type startRequest struct {
	IntervalMs int64 `json:"interval_ms"`
}

func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	interval := h.defaultInterval

	if r.ContentLength > 0 {
		var req startRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid start payload")
			return
		}
		if req.IntervalMs > 0 {
			interval = time.Duration(req.IntervalMs) * time.Millisecond
		}
	}

	if interval < time.Second {
		respondError(w, http.StatusBadRequest, "interval must be at least 1s")
		return
	}

	h.monitor.Start(interval)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"monitoring":  h.monitor.Running(),
		"interval_ms": interval.Milliseconds(),
	})
}

func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.monitor.Stop()
	respondJSON(w, http.StatusOK, map[string]bool{"monitoring": h.monitor.Running()})
}

func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"monitoring": h.monitor.Running()})
}
