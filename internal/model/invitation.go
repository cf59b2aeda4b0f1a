package model

import (
	"time"
)

// Invitation is the consent record for one whisper channel. There is at
// most one per channel_id; declined rows are kept for history.
type Invitation struct {
	ID              string           `db:"id" json:"id"`
	ChannelID       string           `db:"channel_id" json:"channelId"`
	RequesterID     string           `db:"requester_id" json:"requesterId"`
	RecipientID     string           `db:"recipient_id" json:"recipientId"`
	RequesterName   string           `db:"requester_name" json:"requesterName"`
	RequesterAvatar *string          `db:"requester_avatar" json:"requesterAvatar,omitempty"`
	Status          InvitationStatus `db:"status" json:"status"`
	PostID          *string          `db:"post_id" json:"postId,omitempty"`
	PostCaption     *string          `db:"post_caption" json:"postCaption,omitempty"`
	PostPhoto       *string          `db:"post_photo" json:"postPhoto,omitempty"`
	PostMood        *string          `db:"post_mood" json:"postMood,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updatedAt"`
}

// Involves reports whether userID is one of the two channel participants.
func (i *Invitation) Involves(userID string) bool {
	return i.RequesterID == userID || i.RecipientID == userID
}

// PostRef is the community post that prompted a contact request. It is
// stored as an opaque snapshot and never refreshed.
type PostRef struct {
	PostID  string  `json:"postId"`
	Caption *string `json:"caption,omitempty"`
	Photo   *string `json:"photo,omitempty"`
	Mood    *string `json:"mood,omitempty"`
}

type CreateInvitationParams struct {
	ChannelID       string
	RequesterID     string
	RecipientID     string
	RequesterName   string
	RequesterAvatar *string
	Post            *PostRef
}

// EnrichedInvitation is an Invitation plus current display profiles for
// both parties, used only for list views.
type EnrichedInvitation struct {
	Invitation
	RequesterProfile Profile `json:"requesterProfile"`
	RecipientProfile Profile `json:"recipientProfile"`
}

// InvitationViews is the partition of a user's invitations that clients render.
type InvitationViews struct {
	Accepted []EnrichedInvitation `json:"accepted"`
	Incoming []EnrichedInvitation `json:"incoming"`
	Outgoing []EnrichedInvitation `json:"outgoing"`
}
