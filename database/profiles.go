package database

import (
	"context"
	"database/sql"
	"fmt"

	"safemap/apperrors"
	"safemap/models"
)

// ProfileStore reads the users table mirrored from the identity provider.
// This service never writes identity data; profile rows arrive via the
// provider's sync job.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetProfile returns the profile for a user id.
func (s *ProfileStore) GetProfile(ctx context.Context, uid string) (models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, email, display_name, verified_contributor, avatar_url, created_at
		FROM users WHERE uid = ?`, uid).
		Scan(&p.UID, &p.Email, &p.DisplayName, &p.VerifiedContributor, &p.AvatarURL, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return models.UserProfile{}, fmt.Errorf("profile %s: %w", uid, apperrors.ErrNotFound)
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("querying profile: %w", err)
	}
	return p, nil
}

// SetAvatarURL records an uploaded profile image URL.
func (s *ProfileStore) SetAvatarURL(ctx context.Context, uid, url string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET avatar_url = ? WHERE uid = ?`, url, uid)
	if err != nil {
		return fmt.Errorf("updating avatar: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile %s: %w", uid, apperrors.ErrNotFound)
	}
	return nil
}
