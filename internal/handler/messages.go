package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/havenapp/whisper-server/internal/errors"
	"github.com/havenapp/whisper-server/internal/middleware"
	"github.com/havenapp/whisper-server/internal/service"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// POST /v1/channels/{channelID}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID := chi.URLParam(r, "channelID")

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	msg, err := h.messageService.Send(r.Context(), channelID, userID, req.Body)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Str("channelId", channelID).Msg("failed to send message")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// GET /v1/channels/{channelID}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID := chi.URLParam(r, "channelID")
	page := ParsePagination(r)

	msgs, total, err := h.messageService.List(r.Context(), channelID, userID, page.Limit, page.Offset)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Str("channelId", channelID).Msg("failed to list messages")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// DELETE /v1/messages/{messageID}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID := chi.URLParam(r, "messageID")

	if err := h.messageService.Delete(r.Context(), messageID, userID); err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Str("messageId", messageID).Msg("failed to delete message")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
