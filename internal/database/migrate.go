package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Migrate applies the schema. Statements are idempotent so the server can
// run them unconditionally at startup.
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			avatar TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// channel_id uniqueness is what turns a concurrent duplicate
		// create into a lookup of the winner's row.
		`CREATE TABLE IF NOT EXISTS invitations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			channel_id TEXT NOT NULL UNIQUE,
			requester_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			requester_name TEXT NOT NULL,
			requester_avatar TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			post_id TEXT,
			post_caption TEXT,
			post_photo TEXT,
			post_mood TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_invitations_requester
		ON invitations(requester_id)`,

		`CREATE INDEX IF NOT EXISTS idx_invitations_recipient
		ON invitations(recipient_id)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			seq BIGSERIAL,
			channel_id TEXT NOT NULL REFERENCES invitations(channel_id) ON DELETE CASCADE,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_channel_created
		ON messages(channel_id, created_at, seq)`,
	}

	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	log.Info().Int("statements", len(migrations)).Msg("schema migrations applied")
	return nil
}
