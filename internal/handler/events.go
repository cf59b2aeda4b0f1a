package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/havenapp/whisper-server/internal/errors"
	"github.com/havenapp/whisper-server/internal/middleware"
	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/service"
	"github.com/havenapp/whisper-server/internal/sse"
)

// ChannelBroker is the slice of the fan-out broker the SSE endpoint needs.
type ChannelBroker interface {
	Subscribe(channelID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

type EventsHandler struct {
	broker            ChannelBroker
	invitationService *service.InvitationService
}

func NewEventsHandler(broker ChannelBroker, invitationService *service.InvitationService) *EventsHandler {
	return &EventsHandler{
		broker:            broker,
		invitationService: invitationService,
	}
}

// GET /v1/channels/{channelID}/events
// One live stream per open channel per client. The subscription is held
// for the lifetime of the request and released on every exit path.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	channelID := chi.URLParam(r, "channelID")

	inv, err := h.invitationService.Get(r.Context(), channelID)
	if err != nil {
		log.Error().Err(err).Str("channelId", channelID).Msg("failed to resolve channel for events")
		writeError(w, err)
		return
	}
	if inv == nil {
		writeError(w, apperrors.NotFound("Channel"))
		return
	}
	if !inv.Involves(userID) {
		writeError(w, apperrors.Forbidden("Not a participant of this channel"))
		return
	}
	if inv.Status != model.InvitationStatusAccepted {
		writeError(w, apperrors.ChannelNotAccepted())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(channelID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("channelId", channelID).
		Str("userId", userID).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, "connected", map[string]any{
		"channelId": channelID,
		"status":    string(inv.Status),
	}); err != nil {
		log.Error().Err(err).Str("channelId", channelID).Msg("failed to send connected event")
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("channelId", channelID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("channelId", channelID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("channelId", channelID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
