package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
	"github.com/ternarybob/trendreel/internal/services/runs"
)

// RunRequest is the body of POST /api/run. Either ChannelID names a stored
// channel or Channel carries an inline configuration.
type RunRequest struct {
	ChannelID string          `json:"channel_id,omitempty"`
	Channel   *models.Channel `json:"channel,omitempty"`
	ForceMock bool            `json:"force_mock,omitempty"`
}

// RunResponse is the reply to a run or resume request.
type RunResponse struct {
	Success      bool             `json:"success"`
	RunID        string           `json:"run_id"`
	ChannelID    string           `json:"channel_id"`
	Logs         []string         `json:"logs"`
	VideoURL     string           `json:"video_url,omitempty"`
	UploadID     string           `json:"upload_id,omitempty"`
	UsedMockData bool             `json:"used_mock_data"`
	Scheduled    bool             `json:"scheduled,omitempty"`
	FailedStage  models.StageName `json:"failed_stage,omitempty"`
	Error        string           `json:"error,omitempty"`
	State        models.RunState  `json:"state"`
}

// NewRunResponse flattens a run result for the API.
func NewRunResponse(result *models.RunResult) RunResponse {
	resp := RunResponse{
		Success:      result.Success,
		RunID:        result.RunID,
		ChannelID:    result.ChannelID,
		Logs:         result.Logs,
		UsedMockData: result.UsedMockData,
		FailedStage:  result.FailedStage,
		Error:        result.Error,
		State:        result.State,
	}
	if resp.Logs == nil {
		resp.Logs = []string{}
	}
	if result.Upload != nil {
		resp.VideoURL = result.Upload.URL
		resp.UploadID = result.Upload.VideoID
		resp.Scheduled = result.Upload.Status == models.UploadStatusScheduled
	}
	return resp
}

// RunHandler handles pipeline run endpoints
type RunHandler struct {
	runService RunService
	logger     arbor.ILogger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runService RunService, logger arbor.ILogger) *RunHandler {
	return &RunHandler{
		runService: runService,
		logger:     logger,
	}
}

// RunHandler handles POST /api/run. A run that starts always answers 200;
// its outcome is in the body.
func (h *RunHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req RunRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		result *models.RunResult
		err    error
	)
	switch {
	case req.ChannelID != "" && req.Channel != nil:
		WriteError(w, http.StatusBadRequest, "channel_id and channel are mutually exclusive")
		return
	case req.ChannelID != "":
		result, err = h.runService.RunChannel(r.Context(), req.ChannelID, req.ForceMock)
	case req.Channel != nil:
		result, err = h.runService.RunAdHoc(r.Context(), *req.Channel, req.ForceMock)
	default:
		WriteError(w, http.StatusBadRequest, "channel_id or channel is required")
		return
	}
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.logger.Info().
		Str("run_id", result.RunID).
		Str("channel_id", result.ChannelID).
		Bool("success", result.Success).
		Msg("Run completed via API")

	WriteJSON(w, http.StatusOK, NewRunResponse(result))
}

// GetRunHandler handles GET /api/runs/{id}
func (h *RunHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	segments := PathSegments(r.URL.Path, "/api/runs/")
	if len(segments) != 1 {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	result, err := h.runService.GetRun(r.Context(), segments[0])
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result.ForDisplay())
}

// ResumeHandler handles POST /api/runs/{id}/resume
func (h *RunHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	segments := PathSegments(r.URL.Path, "/api/runs/")
	if len(segments) != 2 || segments[1] != "resume" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	result, err := h.runService.Resume(r.Context(), segments[0])
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.logger.Info().
		Str("run_id", result.RunID).
		Bool("success", result.Success).
		Msg("Run resumed via API")

	WriteJSON(w, http.StatusOK, NewRunResponse(result))
}

// ChannelRunsHandler handles GET /api/channels/{id}/runs
func (h *RunHandler) ChannelRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	segments := PathSegments(r.URL.Path, "/api/channels/")
	if len(segments) != 2 || segments[1] != "runs" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	channelID := segments[0]

	list, err := h.runService.ListRuns(r.Context(), channelID, QueryInt(r, "limit", 20, 100))
	if err != nil {
		h.logger.Error().Err(err).Str("channel_id", channelID).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	out := make([]RunResponse, 0, len(list))
	for _, result := range list {
		out = append(out, NewRunResponse(result))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"channel_id": channelID,
		"runs":       out,
		"count":      len(out),
	})
}

func (h *RunHandler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrChannelNotFound), errors.Is(err, interfaces.ErrRunNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runs.ErrRunInProgress):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, runs.ErrInvalidChannel), errors.Is(err, runs.ErrNotResumable):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Run request failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
