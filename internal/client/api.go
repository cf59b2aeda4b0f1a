package client

import (
	"context"

	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/service"
)

// ServiceAPI backs a session with the in-process services.
type ServiceAPI struct {
	invitations *service.InvitationService
	messages    *service.MessageService
}

func NewServiceAPI(invitations *service.InvitationService, messages *service.MessageService) *ServiceAPI {
	return &ServiceAPI{
		invitations: invitations,
		messages:    messages,
	}
}

func (a *ServiceAPI) CreateInvitation(ctx context.Context, params service.CreateInvitationParams) (*model.Invitation, error) {
	return a.invitations.Create(ctx, params)
}

func (a *ServiceAPI) UpdateInvitationStatus(ctx context.Context, channelID string, status model.InvitationStatus, actingUser string) (*model.Invitation, error) {
	return a.invitations.UpdateStatus(ctx, channelID, status, actingUser)
}

func (a *ServiceAPI) ListInvitations(ctx context.Context, userID string) (*model.InvitationViews, error) {
	return a.invitations.ListForUser(ctx, userID)
}

func (a *ServiceAPI) SendMessage(ctx context.Context, channelID, authorID, body string) (*model.Message, error) {
	return a.messages.Send(ctx, channelID, authorID, body)
}

func (a *ServiceAPI) ListMessages(ctx context.Context, channelID, callerID string, limit, offset int) ([]model.Message, error) {
	msgs, _, err := a.messages.List(ctx, channelID, callerID, limit, offset)
	return msgs, err
}

func (a *ServiceAPI) DeleteMessage(ctx context.Context, messageID, actingUser string) error {
	return a.messages.Delete(ctx, messageID, actingUser)
}
