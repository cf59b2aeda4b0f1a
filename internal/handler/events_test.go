package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/service"
	"github.com/havenapp/whisper-server/internal/sse"
)

func eventsRouter(broker ChannelBroker, invRepo *mockInvitationRepo) chi.Router {
	svc := service.NewInvitationService(invRepo, emptyDirectory{}, noopCache{})
	h := NewEventsHandler(broker, svc)

	r := chi.NewRouter()
	r.Get("/v1/channels/{channelID}/events", h.ServeHTTP)
	return r
}

// streamRecorder is a ResponseRecorder safe to read while the handler is
// still writing from its own goroutine.
type streamRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *streamRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *streamRecorder) bodyString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestEventsHandler(t *testing.T) {
	t.Run("streams events to a participant", func(t *testing.T) {
		invRepo := new(mockInvitationRepo)
		broker := &fakeBroker{}
		router := eventsRouter(broker, invRepo)

		invRepo.On("FindByChannelID", mock.Anything, "u1_u2").Return(&model.Invitation{
			ChannelID:   "u1_u2",
			RequesterID: "u1",
			RecipientID: "u2",
			Status:      model.InvitationStatusAccepted,
		}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req := withSession(httptest.NewRequest(http.MethodGet, "/v1/channels/u1_u2/events", nil).WithContext(ctx), "u1")
		rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder()}

		done := make(chan struct{})
		go func() {
			defer close(done)
			router.ServeHTTP(rec, req)
		}()

		// Hand the subscriber a message event once the stream is up.
		require.Eventually(t, func() bool {
			return broker.getClient() != nil
		}, time.Second, 5*time.Millisecond)

		data, _ := json.Marshal(map[string]string{"id": "m1", "body": "hi"})
		broker.getClient().Events <- sse.Event{Type: "message.created", Data: data}

		require.Eventually(t, func() bool {
			return strings.Contains(rec.bodyString(), "event: message.created")
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not exit after context cancellation")
		}

		body := rec.bodyString()
		assert.Contains(t, body, "event: connected")
		assert.Contains(t, body, `"channelId":"u1_u2"`)
		assert.Contains(t, body, `"body":"hi"`)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.True(t, broker.wasUnsubscribed())
	})

	t.Run("closes when the broker drops the client", func(t *testing.T) {
		invRepo := new(mockInvitationRepo)
		broker := &fakeBroker{}
		router := eventsRouter(broker, invRepo)

		invRepo.On("FindByChannelID", mock.Anything, "u1_u2").Return(&model.Invitation{
			ChannelID:   "u1_u2",
			RequesterID: "u1",
			RecipientID: "u2",
			Status:      model.InvitationStatusAccepted,
		}, nil)

		req := withSession(httptest.NewRequest(http.MethodGet, "/v1/channels/u1_u2/events", nil), "u2")
		rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder()}

		done := make(chan struct{})
		go func() {
			defer close(done)
			router.ServeHTTP(rec, req)
		}()

		require.Eventually(t, func() bool {
			return broker.getClient() != nil
		}, time.Second, 5*time.Millisecond)
		close(broker.getClient().Done)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not exit after broker closed the client")
		}
		assert.True(t, broker.wasUnsubscribed())
	})

	t.Run("non-participant is rejected", func(t *testing.T) {
		invRepo := new(mockInvitationRepo)
		broker := &fakeBroker{}
		router := eventsRouter(broker, invRepo)

		invRepo.On("FindByChannelID", mock.Anything, "u1_u2").Return(&model.Invitation{
			ChannelID:   "u1_u2",
			RequesterID: "u1",
			RecipientID: "u2",
			Status:      model.InvitationStatusAccepted,
		}, nil)

		req := withSession(httptest.NewRequest(http.MethodGet, "/v1/channels/u1_u2/events", nil), "u3")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Nil(t, broker.getClient())
	})

	t.Run("unaccepted channel cannot be streamed", func(t *testing.T) {
		for _, status := range []model.InvitationStatus{model.InvitationStatusPending, model.InvitationStatusDeclined} {
			invRepo := new(mockInvitationRepo)
			broker := &fakeBroker{}
			router := eventsRouter(broker, invRepo)

			invRepo.On("FindByChannelID", mock.Anything, "u1_u2").Return(&model.Invitation{
				ChannelID:   "u1_u2",
				RequesterID: "u1",
				RecipientID: "u2",
				Status:      status,
			}, nil)

			req := withSession(httptest.NewRequest(http.MethodGet, "/v1/channels/u1_u2/events", nil), "u2")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Nil(t, broker.getClient())
		}
	})

	t.Run("unknown channel is 404", func(t *testing.T) {
		invRepo := new(mockInvitationRepo)
		broker := &fakeBroker{}
		router := eventsRouter(broker, invRepo)

		invRepo.On("FindByChannelID", mock.Anything, "u1_u9").Return(nil, nil)

		req := withSession(httptest.NewRequest(http.MethodGet, "/v1/channels/u1_u9/events", nil), "u1")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
