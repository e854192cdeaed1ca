package handler

import (
	"net/http"

	"github.com/DilipViharika/PostgresTool-sub003/internal/database"
	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/service"
	"github.com/DilipViharika/PostgresTool-sub003/internal/websocket"

	"github.com/gorilla/mux"
)

type HealthHandler struct {
	db      *database.Database
	monitor *service.MonitorService
	hub     *websocket.Hub
	log     *logger.Logger
}

func NewHealthHandler(db *database.Database, monitor *service.MonitorService, hub *websocket.Hub, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		monitor: monitor,
		hub:     hub,
		log:     log,
	}
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbStatus := "ok"

	if err := h.db.Health(r.Context()); err != nil {
		h.log.Error("Health check database failure: %v", err)
		status = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}

	respondJSON(w, status, map[string]interface{}{
		"database":    dbStatus,
		"monitoring":  h.monitor.Running(),
		"subscribers": h.hub.ClientCount(),
	})
}
