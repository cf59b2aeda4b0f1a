package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/havenapp/whisper-server/internal/audit"
	"github.com/havenapp/whisper-server/internal/config"
	apperrors "github.com/havenapp/whisper-server/internal/errors"
	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/repository"
	"github.com/havenapp/whisper-server/internal/sse"
)

// Publisher pushes an event to every live subscriber of a channel.
// *sse.Broker satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channelID string, event sse.Event) error
}

// MessageService owns the append-only message log of a channel. Writes are
// gated on the channel's invitation being accepted, re-checked on every
// send so a decline can never race a message in.
type MessageService struct {
	msgRepo  repository.MessageRepository
	invRepo  repository.InvitationRepository
	profiles ProfileDirectory
	fanout   Publisher
}

func NewMessageService(
	msgRepo repository.MessageRepository,
	invRepo repository.InvitationRepository,
	profiles ProfileDirectory,
	fanout Publisher,
) *MessageService {
	return &MessageService{
		msgRepo:  msgRepo,
		invRepo:  invRepo,
		profiles: profiles,
		fanout:   fanout,
	}
}

func (s *MessageService) Send(ctx context.Context, channelID, authorID, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.MissingRequired("body")
	}
	if len([]rune(body)) > config.MessageMaxLength {
		return nil, apperrors.InvalidInput("body", fmt.Sprintf("must be at most %d characters", config.MessageMaxLength))
	}

	inv, err := s.invRepo.FindByChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	if inv == nil {
		return nil, apperrors.NotFound("Channel")
	}
	if !inv.Involves(authorID) {
		return nil, apperrors.Forbidden("Not a participant of this channel")
	}
	if inv.Status != model.InvitationStatusAccepted {
		return nil, apperrors.ChannelNotAccepted()
	}

	msg, err := s.msgRepo.Create(ctx, model.CreateMessageParams{
		ChannelID:  channelID,
		AuthorID:   authorID,
		AuthorName: s.authorName(ctx, authorID),
		Body:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	// Delivery is at-least-once and receivers dedup by message id, so a
	// failed publish degrades to "fetch on next list" rather than an error.
	if err := s.fanout.Publish(ctx, channelID, sse.Event{
		Type: sse.EventTypeMessage,
		Data: msg.ToEventData(),
	}); err != nil {
		log.Error().Err(err).
			Str("messageId", msg.ID).
			Str("channelId", channelID).
			Msg("failed to publish message event")
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("channelId", channelID).
		Str("authorId", authorID).
		Msg("message sent")

	return msg, nil
}

// List returns one page of the channel's messages oldest first, plus the
// channel's total message count for pagination.
func (s *MessageService) List(ctx context.Context, channelID, callerID string, limit, offset int) ([]model.Message, int, error) {
	inv, err := s.invRepo.FindByChannelID(ctx, channelID)
	if err != nil {
		return nil, 0, fmt.Errorf("find invitation: %w", err)
	}
	if inv == nil {
		return nil, 0, apperrors.NotFound("Channel")
	}
	if !inv.Involves(callerID) {
		return nil, 0, apperrors.Forbidden("Not a participant of this channel")
	}

	msgs, err := s.msgRepo.FindByChannelID(ctx, channelID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	total, err := s.msgRepo.CountByChannelID(ctx, channelID)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return msgs, total, nil
}

func (s *MessageService) Delete(ctx context.Context, messageID, actingUser string) error {
	msg, err := s.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("find message: %w", err)
	}
	if msg == nil {
		return apperrors.NotFound("Message")
	}

	if msg.AuthorID != actingUser {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventMessageDeleteDenied,
			UserID:    actingUser,
			ChannelID: msg.ChannelID,
			Details:   map[string]interface{}{"messageId": messageID},
		})
		return apperrors.Forbidden("Only the author can delete a message")
	}

	if err := s.msgRepo.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventMessageDelete,
		UserID:    actingUser,
		ChannelID: msg.ChannelID,
		Details:   map[string]interface{}{"messageId": messageID},
	})

	return nil
}

// authorName snapshots the sender's current display name. A directory miss
// degrades to "Unknown"; it never blocks the send.
func (s *MessageService) authorName(ctx context.Context, authorID string) string {
	profiles := s.profiles.Lookup(ctx, []string{authorID})
	if p, ok := profiles[authorID]; ok {
		return p.DisplayName
	}
	return model.UnknownDisplayName
}
