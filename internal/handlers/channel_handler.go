package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/models"
)

// ChannelHandler handles channel record endpoints
type ChannelHandler struct {
	channels     interfaces.ChannelStorage
	eventService interfaces.EventService
	now          func() time.Time
	logger       arbor.ILogger
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(channels interfaces.ChannelStorage, eventService interfaces.EventService, logger arbor.ILogger) *ChannelHandler {
	return &ChannelHandler{
		channels:     channels,
		eventService: eventService,
		now:          time.Now,
		logger:       logger,
	}
}

// channelID extracts {id} from /api/channels/{id}
func channelID(w http.ResponseWriter, r *http.Request) (string, bool) {
	segments := PathSegments(r.URL.Path, "/api/channels/")
	if len(segments) != 1 {
		WriteError(w, http.StatusNotFound, "Not found")
		return "", false
	}
	return segments[0], true
}

// ListHandler handles GET /api/channels
func (h *ChannelHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	h.list(w, r)
}

// CreateHandler handles POST /api/channels
func (h *ChannelHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	h.create(w, r)
}

// GetHandler handles GET /api/channels/{id}
func (h *ChannelHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if id, ok := channelID(w, r); ok {
		h.get(w, r, id)
	}
}

// UpdateHandler handles PUT /api/channels/{id}
func (h *ChannelHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	if id, ok := channelID(w, r); ok {
		h.update(w, r, id)
	}
}

// DeleteHandler handles DELETE /api/channels/{id}
func (h *ChannelHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if id, ok := channelID(w, r); ok {
		h.delete(w, r, id)
	}
}

func (h *ChannelHandler) list(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.ListChannels(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list channels")
		WriteError(w, http.StatusInternalServerError, "Failed to list channels")
		return
	}

	out := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, ch.Redacted())
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"channels": out,
		"count":    len(out),
	})
}

func (h *ChannelHandler) create(w http.ResponseWriter, r *http.Request) {
	var channel models.Channel
	if err := DecodeJSON(r, &channel); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if channel.ID == "" {
		channel.ID = common.NewChannelID()
	} else if _, err := h.channels.GetChannel(r.Context(), channel.ID); err == nil {
		WriteError(w, http.StatusConflict, "channel already exists: "+channel.ID)
		return
	}

	h.save(w, r, &channel, http.StatusCreated)
}

func (h *ChannelHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	channel, err := h.channels.GetChannel(r.Context(), id)
	if err != nil {
		h.writeChannelError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, channel.Redacted())
}

// update replaces the configuration fields; run-owned fields are kept
func (h *ChannelHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.channels.GetChannel(r.Context(), id)
	if err != nil {
		h.writeChannelError(w, err)
		return
	}

	var channel models.Channel
	if err := DecodeJSON(r, &channel); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	channel.ID = id
	channel.Status = existing.Status
	channel.LastLog = existing.LastLog
	channel.LastRunAt = existing.LastRunAt
	channel.LastRunID = existing.LastRunID
	channel.CreatedAt = existing.CreatedAt
	if channel.Credentials.RefreshToken == "" || channel.Credentials.RefreshToken == existing.Redacted().Credentials.RefreshToken {
		channel.Credentials = existing.Credentials
	}
	if channel.Schedule.CreatedAt.IsZero() {
		channel.Schedule.CreatedAt = existing.Schedule.CreatedAt
	}

	h.save(w, r, &channel, http.StatusOK)
}

func (h *ChannelHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.channels.DeleteChannel(r.Context(), id); err != nil {
		h.writeChannelError(w, err)
		return
	}

	h.logger.Info().Str("channel_id", id).Msg("Channel deleted")
	WriteSuccess(w, "Channel deleted")
}

func (h *ChannelHandler) save(w http.ResponseWriter, r *http.Request, channel *models.Channel, status int) {
	now := h.now()
	if channel.Schedule.CreatedAt.IsZero() {
		channel.Schedule.CreatedAt = now
	}
	if err := channel.Validate(now); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.channels.SaveChannel(r.Context(), channel); err != nil {
		h.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("Failed to save channel")
		WriteError(w, http.StatusInternalServerError, "Failed to save channel")
		return
	}

	if h.eventService != nil {
		_ = h.eventService.Publish(r.Context(), interfaces.Event{
			Type: interfaces.EventChannelSaved,
			Payload: map[string]interface{}{
				"channel_id": channel.ID,
				"enabled":    channel.Schedule.Enabled,
			},
		})
	}

	h.logger.Info().Str("channel_id", channel.ID).Msg("Channel saved")
	WriteJSON(w, status, channel.Redacted())
}

func (h *ChannelHandler) writeChannelError(w http.ResponseWriter, err error) {
	if errors.Is(err, interfaces.ErrChannelNotFound) {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("Channel request failed")
	WriteError(w, http.StatusInternalServerError, err.Error())
}
