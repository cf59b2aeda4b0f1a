package model

import (
	"encoding/json"
	"time"
)

// Message is one immutable whisper within an accepted channel.
type Message struct {
	ID         string    `db:"id" json:"id"`
	Seq        int64     `db:"seq" json:"-"`
	ChannelID  string    `db:"channel_id" json:"channelId"`
	AuthorID   string    `db:"author_id" json:"authorId"`
	AuthorName string    `db:"author_name" json:"authorName"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ToEventData returns the JSON payload pushed to channel subscribers.
func (m *Message) ToEventData() json.RawMessage {
	data, _ := json.Marshal(m)
	return data
}

type CreateMessageParams struct {
	ChannelID  string
	AuthorID   string
	AuthorName string
	Body       string
}
