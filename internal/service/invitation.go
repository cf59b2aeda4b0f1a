package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/havenapp/whisper-server/internal/audit"
	"github.com/havenapp/whisper-server/internal/cache"
	"github.com/havenapp/whisper-server/internal/channel"
	apperrors "github.com/havenapp/whisper-server/internal/errors"
	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/repository"
)

type CreateInvitationParams struct {
	RequesterID     string
	RecipientID     string
	RequesterName   string
	RequesterAvatar *string
	Post            *model.PostRef
}

// InvitationService owns the invitation lifecycle: idempotent creation,
// the pending -> accepted/declined transition, and the partitioned list
// views clients render.
type InvitationService struct {
	invRepo  repository.InvitationRepository
	profiles ProfileDirectory
	lists    cache.ListCache
}

func NewInvitationService(
	invRepo repository.InvitationRepository,
	profiles ProfileDirectory,
	lists cache.ListCache,
) *InvitationService {
	return &InvitationService{
		invRepo:  invRepo,
		profiles: profiles,
		lists:    lists,
	}
}

// Create resolves the channel id for the pair and inserts a pending
// invitation. If one already exists for the channel, whichever side
// created it and in whatever state, that row is returned unchanged, so
// the operation is safe to retry.
func (s *InvitationService) Create(ctx context.Context, params CreateInvitationParams) (*model.Invitation, error) {
	if !channel.IsValidUserID(params.RequesterID) {
		return nil, apperrors.InvalidInput("requesterId", "malformed user id")
	}
	if !channel.IsValidUserID(params.RecipientID) {
		return nil, apperrors.InvalidInput("recipientId", "malformed user id")
	}
	if params.RequesterID == params.RecipientID {
		return nil, apperrors.InvalidInput("recipientId", "cannot whisper yourself")
	}
	if params.RequesterName == "" {
		return nil, apperrors.MissingRequired("requesterName")
	}

	channelID := channel.Resolve(params.RequesterID, params.RecipientID)

	existing, err := s.invRepo.FindByChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	inv, err := s.invRepo.Create(ctx, model.CreateInvitationParams{
		ChannelID:       channelID,
		RequesterID:     params.RequesterID,
		RecipientID:     params.RecipientID,
		RequesterName:   params.RequesterName,
		RequesterAvatar: params.RequesterAvatar,
		Post:            params.Post,
	})
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	if inv == nil {
		// Lost the create race; the unique constraint on channel_id
		// guarantees the winner's row is there to read.
		inv, err = s.invRepo.FindByChannelID(ctx, channelID)
		if err != nil {
			return nil, fmt.Errorf("find invitation after conflict: %w", err)
		}
		if inv == nil {
			return nil, apperrors.Internal("invitation vanished after create conflict")
		}
		return inv, nil
	}

	s.lists.Invalidate(ctx, params.RequesterID, params.RecipientID)

	audit.Log(ctx, audit.Event{
		Type:      audit.EventInvitationCreate,
		UserID:    params.RequesterID,
		ChannelID: channelID,
	})

	log.Info().
		Str("channelId", channelID).
		Str("requesterId", params.RequesterID).
		Str("recipientId", params.RecipientID).
		Msg("invitation created")

	return inv, nil
}

// Get returns the invitation for a channel, or nil if none exists.
func (s *InvitationService) Get(ctx context.Context, channelID string) (*model.Invitation, error) {
	return s.invRepo.FindByChannelID(ctx, channelID)
}

// UpdateStatus performs the pending -> accepted/declined transition. Only
// the invited party may transition, and only out of pending.
func (s *InvitationService) UpdateStatus(ctx context.Context, channelID string, newStatus model.InvitationStatus, actingUser string) (*model.Invitation, error) {
	if !newStatus.Valid() || newStatus == model.InvitationStatusPending {
		return nil, apperrors.InvalidInput("status", "must be accepted or declined")
	}

	inv, err := s.invRepo.FindByChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	if inv == nil {
		return nil, apperrors.NotFound("Invitation")
	}

	if actingUser != inv.RecipientID {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventTransitionDenied,
			UserID:    actingUser,
			ChannelID: channelID,
		})
		return nil, apperrors.Forbidden("Only the invited user can respond to a chat request")
	}

	if inv.Status != model.InvitationStatusPending {
		return nil, apperrors.InvalidTransition(string(inv.Status))
	}

	updated, err := s.invRepo.UpdateStatus(ctx, channelID, newStatus)
	if err != nil {
		return nil, fmt.Errorf("update invitation status: %w", err)
	}
	if updated == nil {
		// The UPDATE only touches pending rows, so nil here means a
		// concurrent transition won. Re-read to report the settled state.
		current, err := s.invRepo.FindByChannelID(ctx, channelID)
		if err != nil {
			return nil, fmt.Errorf("re-read invitation: %w", err)
		}
		if current == nil {
			return nil, apperrors.NotFound("Invitation")
		}
		return nil, apperrors.InvalidTransition(string(current.Status))
	}

	s.lists.Invalidate(ctx, updated.RequesterID, updated.RecipientID)

	audit.Log(ctx, audit.Event{
		Type:      audit.EventInvitationTransition,
		UserID:    actingUser,
		ChannelID: channelID,
		Details:   map[string]interface{}{"status": string(newStatus)},
	})

	log.Info().
		Str("channelId", channelID).
		Str("status", string(newStatus)).
		Msg("invitation status updated")

	return updated, nil
}

// ListForUser returns the user's invitations partitioned into the three
// views clients render: accepted channels, incoming pending requests and
// outgoing pending requests. Views are read through the TTL cache.
func (s *InvitationService) ListForUser(ctx context.Context, userID string) (*model.InvitationViews, error) {
	if views, ok := s.lists.GetViews(ctx, userID); ok {
		return views, nil
	}

	invs, err := s.invRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}

	views := s.partition(ctx, userID, invs)
	s.lists.SetViews(ctx, userID, views)
	return views, nil
}

// ListForUserByStatus returns the user's invitations in one lifecycle state
// as a flat enriched list. Declined rows are kept for history, so unlike the
// partitioned views this path can return them.
func (s *InvitationService) ListForUserByStatus(ctx context.Context, userID string, status model.InvitationStatus) ([]model.EnrichedInvitation, error) {
	invs, err := s.invRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}

	filtered := make([]model.Invitation, 0, len(invs))
	for _, inv := range invs {
		if inv.Status == status {
			filtered = append(filtered, inv)
		}
	}
	return s.enrich(ctx, filtered), nil
}

func (s *InvitationService) partition(ctx context.Context, userID string, invs []model.Invitation) *model.InvitationViews {
	views := &model.InvitationViews{
		Accepted: []model.EnrichedInvitation{},
		Incoming: []model.EnrichedInvitation{},
		Outgoing: []model.EnrichedInvitation{},
	}

	for _, enriched := range s.enrich(ctx, invs) {
		switch {
		case enriched.Status == model.InvitationStatusAccepted:
			views.Accepted = append(views.Accepted, enriched)
		case enriched.Status == model.InvitationStatusPending && enriched.RecipientID == userID:
			views.Incoming = append(views.Incoming, enriched)
		case enriched.Status == model.InvitationStatusPending && enriched.RequesterID == userID:
			views.Outgoing = append(views.Outgoing, enriched)
		}
	}

	return views
}

func (s *InvitationService) enrich(ctx context.Context, invs []model.Invitation) []model.EnrichedInvitation {
	ids := make([]string, 0, len(invs)*2)
	seen := make(map[string]bool)
	for _, inv := range invs {
		for _, id := range []string{inv.RequesterID, inv.RecipientID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	profiles := s.profiles.Lookup(ctx, ids)

	enriched := make([]model.EnrichedInvitation, 0, len(invs))
	for _, inv := range invs {
		enriched = append(enriched, model.EnrichedInvitation{
			Invitation:       inv,
			RequesterProfile: profileOrFallback(profiles, inv.RequesterID, inv.RequesterName, inv.RequesterAvatar),
			RecipientProfile: profileOrFallback(profiles, inv.RecipientID, "", nil),
		})
	}
	return enriched
}

// profileOrFallback prefers the live directory profile and degrades to the
// snapshot taken at creation time, then to "Unknown".
func profileOrFallback(profiles map[string]model.Profile, userID, snapshotName string, snapshotAvatar *string) model.Profile {
	if p, ok := profiles[userID]; ok {
		return p
	}

	name := snapshotName
	if name == "" {
		name = model.UnknownDisplayName
	}
	return model.Profile{
		UserID:      userID,
		DisplayName: name,
		Avatar:      snapshotAvatar,
	}
}
