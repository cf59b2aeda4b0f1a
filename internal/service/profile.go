package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/havenapp/whisper-server/internal/model"
	"github.com/havenapp/whisper-server/internal/repository"
)

// ProfileDirectory resolves user ids to display profiles. It is used only
// to enrich views; lookups degrade to a partial result instead of failing,
// so no correctness-critical decision may depend on it.
type ProfileDirectory interface {
	Lookup(ctx context.Context, userIDs []string) map[string]model.Profile
}

type profileDirectory struct {
	profileRepo repository.ProfileRepository
}

func NewProfileDirectory(profileRepo repository.ProfileRepository) ProfileDirectory {
	return &profileDirectory{profileRepo: profileRepo}
}

func (d *profileDirectory) Lookup(ctx context.Context, userIDs []string) map[string]model.Profile {
	result := make(map[string]model.Profile, len(userIDs))

	profiles, err := d.profileRepo.FindByUserIDs(ctx, userIDs)
	if err != nil {
		log.Warn().Err(err).Int("requested", len(userIDs)).Msg("profile lookup failed, degrading to unknown")
		return result
	}

	for _, p := range profiles {
		result[p.UserID] = p
	}
	return result
}
