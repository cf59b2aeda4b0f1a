package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/havenapp/whisper-server/internal/model"
)

type MessageRepository interface {
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByChannelID(ctx context.Context, channelID string, limit, offset int) ([]model.Message, error)
	CountByChannelID(ctx context.Context, channelID string) (int, error)
	Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error)
	Delete(ctx context.Context, id string) error
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM messages WHERE id = $1`, id)
	return HandleNotFound(&msg, err)
}

// FindByChannelID returns messages oldest first. The seq tiebreak keeps
// the order stable when two inserts share a timestamp.
func (r *messageRepo) FindByChannelID(ctx context.Context, channelID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE channel_id = $1
		ORDER BY created_at ASC, seq ASC
		LIMIT $2 OFFSET $3
	`, channelID, limit, offset)
	return msgs, err
}

func (r *messageRepo) CountByChannelID(ctx context.Context, channelID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE channel_id = $1
	`, channelID)
	return count, err
}

func (r *messageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (channel_id, author_id, author_name, body)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ChannelID, params.AuthorID, params.AuthorName, params.Body)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}
