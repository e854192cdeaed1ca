package handler

import (
	"net/http"
	"strconv"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/notifier"
	"github.com/DilipViharika/PostgresTool-sub003/internal/service"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	dispatcher   *notifier.Dispatcher
	alertService service.IAlertService
	log          *logger.Logger
}

func NewNotificationHandler(dispatcher *notifier.Dispatcher, alertService service.IAlertService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		dispatcher:   dispatcher,
		alertService: alertService,
		log:          log,
	}
}

func (h *NotificationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/notifications/test", h.SendTest).Methods("POST")
	r.HandleFunc("/notifications/digest", h.SendDigest).Methods("POST")
}

type testRequest struct {
	Recipient string `json:"recipient"`
}

func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := decodeJSON(r, &req); err != nil || req.Recipient == "" {
		respondError(w, http.StatusBadRequest, "body must contain a recipient")
		return
	}

	if err := h.dispatcher.SendTest(req.Recipient); err != nil {
		h.log.Error("Test notification failed: %v", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "test notification sent"})
}

type digestRequest struct {
	Recipients []string `json:"recipients"`
}

// SendDigest delivers a single summarized notification covering recent
// alerts. The recipients in the body override the configured list.
func (h *NotificationHandler) SendDigest(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	var req digestRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid digest payload")
			return
		}
	}

	alerts, err := h.alertService.GetRecent(r.Context(), limit, true)
	if err != nil {
		h.log.Error("Failed to load alerts for digest: %v", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if len(alerts) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no alerts to digest")
		return
	}

	if err := h.dispatcher.Digest(alerts, req.Recipients); err != nil {
		h.log.Error("Digest delivery failed: %v", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "digest sent",
		"alerts": len(alerts),
	})
}
