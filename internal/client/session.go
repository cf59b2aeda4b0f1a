// Package client implements the per-user session controller: the three
// partitioned invitation views, the message list for the selected channel,
// and the reconciliation of optimistic sends with fan-out echoes.
package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/havenapp/whisper-server/internal/channel"
	apperrors "github.com/havenapp/whisper-server/internal/errors"
	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/service"
	"github.com/havenapp/whisper-server/internal/sse"
)

// ChatAPI is the slice of the server surface a session drives. In-process
// it is backed by the services directly; a remote client would back it
// with HTTP calls against the same routes.
type ChatAPI interface {
	CreateInvitation(ctx context.Context, params service.CreateInvitationParams) (*model.Invitation, error)
	UpdateInvitationStatus(ctx context.Context, channelID string, status model.InvitationStatus, actingUser string) (*model.Invitation, error)
	ListInvitations(ctx context.Context, userID string) (*model.InvitationViews, error)
	SendMessage(ctx context.Context, channelID, authorID, body string) (*model.Message, error)
	ListMessages(ctx context.Context, channelID, callerID string, limit, offset int) ([]model.Message, error)
	DeleteMessage(ctx context.Context, messageID, actingUser string) error
}

// Subscriber hands out live per-channel subscriptions. The fan-out broker
// satisfies it directly.
type Subscriber interface {
	Subscribe(channelID string) *sse.Client
	Unsubscribe(client *sse.Client)
}

// ChatMessage is a message as the session renders it. Pending marks an
// optimistic local append that the server has not yet confirmed.
type ChatMessage struct {
	model.Message
	Pending bool   `json:"pending"`
	LocalID string `json:"localId,omitempty"`
}

const historyPageSize = 100

// Session is one authenticated user's client state. All views it holds are
// derived; the stores remain the source of truth. Methods are safe to call
// while the subscription pump is delivering events in the background.
type Session struct {
	userID      string
	displayName string
	avatar      *string

	api        ChatAPI
	subscriber Subscriber

	mu       sync.Mutex
	views    model.InvitationViews
	selected string
	messages []ChatMessage
	rendered map[string]bool // server message ids already in the view
	sub      *sse.Client
	pumpDone chan struct{}
	closed   bool
}

func NewSession(userID, displayName string, avatar *string, api ChatAPI, subscriber Subscriber) *Session {
	return &Session{
		userID:      userID,
		displayName: displayName,
		avatar:      avatar,
		api:         api,
		subscriber:  subscriber,
		rendered:    make(map[string]bool),
	}
}

func (s *Session) UserID() string { return s.userID }

// Refresh reloads the three partitioned invitation views.
func (s *Session) Refresh(ctx context.Context) error {
	views, err := s.api.ListInvitations(ctx, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.views = *views
	s.mu.Unlock()
	return nil
}

// Views returns a copy of the current invitation views.
func (s *Session) Views() model.InvitationViews {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views
}

// ContactFromPost initiates a whisper with a post's author: resolves the
// channel, creates (or finds) the invitation with the post attached, then
// selects the channel so the message view opens on it.
func (s *Session) ContactFromPost(ctx context.Context, authorID string, post *model.PostRef) (*model.Invitation, error) {
	inv, err := s.api.CreateInvitation(ctx, service.CreateInvitationParams{
		RequesterID:     s.userID,
		RecipientID:     authorID,
		RequesterName:   s.displayName,
		RequesterAvatar: s.avatar,
		Post:            post,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("userId", s.userID).Msg("failed to refresh views after contact")
	}
	if err := s.SelectChannel(ctx, inv.ChannelID); err != nil {
		return nil, err
	}
	return inv, nil
}

// Accept approves an incoming invitation.
func (s *Session) Accept(ctx context.Context, channelID string) (*model.Invitation, error) {
	return s.transition(ctx, channelID, model.InvitationStatusAccepted)
}

// Decline rejects an incoming invitation.
func (s *Session) Decline(ctx context.Context, channelID string) (*model.Invitation, error) {
	return s.transition(ctx, channelID, model.InvitationStatusDeclined)
}

func (s *Session) transition(ctx context.Context, channelID string, status model.InvitationStatus) (*model.Invitation, error) {
	inv, err := s.api.UpdateInvitationStatus(ctx, channelID, status, s.userID)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("channelId", channelID).Msg("failed to refresh views after transition")
	}
	return inv, nil
}

// SelectChannel switches the message view to channelID: the previous
// subscription is released, history is loaded, and a fresh subscription is
// acquired. Selecting the already-selected channel resubscribes, which is
// also the recovery path after a dropped stream.
func (s *Session) SelectChannel(ctx context.Context, channelID string) error {
	s.releaseSubscription()

	history, err := s.api.ListMessages(ctx, channelID, s.userID, historyPageSize, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.Internal("session is closed")
	}
	s.selected = channelID
	s.messages = make([]ChatMessage, 0, len(history))
	s.rendered = make(map[string]bool, len(history))
	for _, m := range history {
		s.messages = append(s.messages, ChatMessage{Message: m})
		s.rendered[m.ID] = true
	}

	client := s.subscriber.Subscribe(channelID)
	pumpDone := make(chan struct{})
	s.sub = client
	s.pumpDone = pumpDone
	s.mu.Unlock()

	go s.pump(client, pumpDone)
	return nil
}

// pump drains a subscription into the message view until the subscription
// is released or the broker drops the client.
func (s *Session) pump(client *sse.Client, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-client.Done:
			log.Debug().
				Str("channelId", client.ChannelID).
				Str("userId", s.userID).
				Msg("channel subscription dropped")
			return
		case event := <-client.Events:
			s.HandleEvent(event)
		}
	}
}

// HandleEvent applies one fan-out event to the local view. Delivery is
// at-least-once, so any message id already rendered is discarded.
func (s *Session) HandleEvent(event sse.Event) {
	if event.Type != sse.EventTypeMessage {
		return
	}

	var msg model.Message
	if err := json.Unmarshal(event.Data, &msg); err != nil {
		log.Warn().Err(err).Str("userId", s.userID).Msg("malformed channel event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ChannelID != s.selected {
		return
	}
	if s.rendered[msg.ID] {
		return
	}
	s.rendered[msg.ID] = true
	s.messages = append(s.messages, ChatMessage{Message: msg})
}

// Send appends the outgoing message optimistically with a pending marker,
// then reconciles the entry once the authoritative insert returns. On
// failure the optimistic entry is rolled back and the error surfaces so
// the caller can show an inline notice.
func (s *Session) Send(ctx context.Context, body string) (*model.Message, error) {
	s.mu.Lock()
	channelID := s.selected
	if channelID == "" {
		s.mu.Unlock()
		return nil, apperrors.ValidationError("No channel selected")
	}

	localID := uuid.NewString()
	s.messages = append(s.messages, ChatMessage{
		Message: model.Message{
			ChannelID:  channelID,
			AuthorID:   s.userID,
			AuthorName: s.displayName,
			Body:       body,
			CreatedAt:  time.Now().UTC(),
		},
		Pending: true,
		LocalID: localID,
	})
	s.mu.Unlock()

	msg, err := s.api.SendMessage(ctx, channelID, s.userID, body)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocal(localID)
	if err != nil {
		if idx >= 0 {
			s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		}
		return nil, err
	}

	if s.rendered[msg.ID] {
		// The fan-out echo beat the response; drop the optimistic entry.
		if idx >= 0 {
			s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		}
		return msg, nil
	}

	s.rendered[msg.ID] = true
	if idx >= 0 {
		s.messages[idx] = ChatMessage{Message: *msg}
	} else {
		s.messages = append(s.messages, ChatMessage{Message: *msg})
	}
	return msg, nil
}

// DeleteMessage removes one of the caller's own messages and drops it from
// the local view.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	if err := s.api.DeleteMessage(ctx, messageID, s.userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == messageID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	delete(s.rendered, messageID)
	return nil
}

// Messages returns a copy of the selected channel's message view, pending
// entries included, in render order.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// SelectedChannel returns the currently selected channel id, or "".
func (s *Session) SelectedChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// ChannelWith resolves the canonical channel id between this user and
// another participant.
func (s *Session) ChannelWith(otherID string) string {
	return channel.Resolve(s.userID, otherID)
}

// Close releases the live subscription. The session keeps its derived
// views but accepts no further channel selection.
func (s *Session) Close() {
	s.releaseSubscription()
	s.mu.Lock()
	s.closed = true
	s.selected = ""
	s.mu.Unlock()
}

func (s *Session) releaseSubscription() {
	s.mu.Lock()
	sub := s.sub
	pumpDone := s.pumpDone
	s.sub = nil
	s.pumpDone = nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	s.subscriber.Unsubscribe(sub)
	if pumpDone != nil {
		<-pumpDone
	}
}

func (s *Session) indexOfLocal(localID string) int {
	for i, m := range s.messages {
		if m.LocalID == localID {
			return i
		}
	}
	return -1
}
