package model

import "time"

// Profile is the display identity served by the profile directory.
type Profile struct {
	UserID      string    `db:"user_id" json:"userId"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Avatar      *string   `db:"avatar" json:"avatar,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}

// UnknownDisplayName is used when the profile directory cannot resolve a user.
const UnknownDisplayName = "Unknown"
