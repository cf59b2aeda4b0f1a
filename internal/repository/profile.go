package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/havenapp/whisper-server/internal/model"
)

type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	FindByUserIDs(ctx context.Context, userIDs []string) ([]model.Profile, error)
}

type profileRepo struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM profiles WHERE user_id = $1
	`, userID)
	return HandleNotFound(&profile, err)
}

func (r *profileRepo) FindByUserIDs(ctx context.Context, userIDs []string) ([]model.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var profiles []model.Profile
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT * FROM profiles WHERE user_id = ANY($1)
	`, pq.Array(userIDs))
	return profiles, err
}
