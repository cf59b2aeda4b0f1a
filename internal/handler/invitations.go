package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/havenapp/whisper-server/internal/errors"
	"github.com/havenapp/whisper-server/internal/middleware"
	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/service"
)

type InvitationHandler struct {
	invitationService *service.InvitationService
}

func NewInvitationHandler(invitationService *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

func (h *InvitationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Patch("/{channelID}", h.UpdateStatus)

	return r
}

// POST /v1/invitations
// Idempotent per channel: repeating the contact action returns the
// existing invitation.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		RecipientID   string         `json:"recipientId"`
		DisplayName   string         `json:"displayName"`
		Avatar        *string        `json:"avatar"`
		OriginPost    *model.PostRef `json:"originPost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	inv, err := h.invitationService.Create(r.Context(), service.CreateInvitationParams{
		RequesterID:     userID,
		RecipientID:     req.RecipientID,
		RequesterName:   req.DisplayName,
		RequesterAvatar: req.Avatar,
		Post:            req.OriginPost,
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Str("userId", userID).Msg("failed to create invitation")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

// GET /v1/invitations
// Returns the caller's partitioned views; ?channelId= narrows to one
// invitation, ?status= flattens to a filtered list.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	ctx := r.Context()

	if channelID := r.URL.Query().Get("channelId"); channelID != "" {
		inv, err := h.invitationService.Get(ctx, channelID)
		if err != nil {
			log.Error().Err(err).Str("channelId", channelID).Msg("failed to get invitation")
			writeError(w, err)
			return
		}
		if inv == nil {
			writeError(w, apperrors.NotFound("Invitation"))
			return
		}
		if !inv.Involves(userID) {
			writeError(w, apperrors.Forbidden("Not a participant of this channel"))
			return
		}
		writeJSON(w, http.StatusOK, inv)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if !model.InvitationStatus(status).Valid() {
			writeError(w, apperrors.InvalidInput("status", "unknown status"))
			return
		}
		list, err := h.invitationService.ListForUserByStatus(ctx, userID, model.InvitationStatus(status))
		if err != nil {
			log.Error().Err(err).Str("userId", userID).Msg("failed to list invitations")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	views, err := h.invitationService.ListForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to list invitations")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// PATCH /v1/invitations/{channelID}
func (h *InvitationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID := chi.URLParam(r, "channelID")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Status == "" {
		writeError(w, apperrors.MissingRequired("status"))
		return
	}

	inv, err := h.invitationService.UpdateStatus(r.Context(), channelID, model.InvitationStatus(req.Status), userID)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Str("channelId", channelID).Msg("failed to update invitation status")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}
