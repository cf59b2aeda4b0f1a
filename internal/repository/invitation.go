package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/havenapp/whisper-server/internal/model"
)

type InvitationRepository interface {
	FindByChannelID(ctx context.Context, channelID string) (*model.Invitation, error)
	FindByUserID(ctx context.Context, userID string) ([]model.Invitation, error)
	Create(ctx context.Context, params model.CreateInvitationParams) (*model.Invitation, error)
	UpdateStatus(ctx context.Context, channelID string, status model.InvitationStatus) (*model.Invitation, error)
}

type invitationRepo struct {
	db *sqlx.DB
}

func NewInvitationRepository(db *sqlx.DB) InvitationRepository {
	return &invitationRepo{db: db}
}

func (r *invitationRepo) FindByChannelID(ctx context.Context, channelID string) (*model.Invitation, error) {
	var inv model.Invitation
	err := r.db.GetContext(ctx, &inv, `
		SELECT * FROM invitations WHERE channel_id = $1
	`, channelID)
	return HandleNotFound(&inv, err)
}

func (r *invitationRepo) FindByUserID(ctx context.Context, userID string) ([]model.Invitation, error) {
	var invs []model.Invitation
	err := r.db.SelectContext(ctx, &invs, `
		SELECT * FROM invitations
		WHERE requester_id = $1 OR recipient_id = $1
		ORDER BY updated_at DESC
	`, userID)
	return invs, err
}

// Create inserts a pending invitation. If a row for the channel already
// exists it returns (nil, nil); callers re-read the existing row. The
// unique constraint on channel_id makes the loser of a concurrent create
// race land here too.
func (r *invitationRepo) Create(ctx context.Context, params model.CreateInvitationParams) (*model.Invitation, error) {
	var postID, caption, photo, mood *string
	if params.Post != nil {
		postID = &params.Post.PostID
		caption = params.Post.Caption
		photo = params.Post.Photo
		mood = params.Post.Mood
	}

	var inv model.Invitation
	err := r.db.GetContext(ctx, &inv, `
		INSERT INTO invitations
			(channel_id, requester_id, recipient_id, requester_name, requester_avatar,
			 post_id, post_caption, post_photo, post_mood)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (channel_id) DO NOTHING
		RETURNING *
	`, params.ChannelID, params.RequesterID, params.RecipientID,
		params.RequesterName, params.RequesterAvatar, postID, caption, photo, mood)
	if isUniqueViolation(err) {
		return nil, nil
	}
	return HandleNotFound(&inv, err)
}

// UpdateStatus transitions a pending invitation and returns the updated
// row. It returns (nil, nil) when the row is missing or no longer pending;
// the status predicate makes the loser of a concurrent transition race
// harmless, twin to Create's ON CONFLICT DO NOTHING.
func (r *invitationRepo) UpdateStatus(ctx context.Context, channelID string, status model.InvitationStatus) (*model.Invitation, error) {
	var inv model.Invitation
	err := r.db.GetContext(ctx, &inv, `
		UPDATE invitations SET
			status = $2,
			updated_at = NOW()
		WHERE channel_id = $1 AND status = 'pending'
		RETURNING *
	`, channelID, status)
	return HandleNotFound(&inv, err)
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
