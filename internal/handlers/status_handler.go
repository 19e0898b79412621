package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	statusService StatusProvider
	logger        arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(statusService StatusProvider, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		logger:        logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, h.statusService.GetStatus())
}
