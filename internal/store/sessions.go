package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"authgate/internal/models"
)

type Sessions struct {
	db *gorm.DB
}

func (s *Sessions) Create(ctx context.Context, sess *models.Session) error {
	return translate(s.db.WithContext(ctx).Create(sess).Error)
}

// FindValidByUser returns the user's live sessions: still valid and not past
// expiry. The refresh-token hash is salted, so the caller compares candidates
// against the presented token instead of looking one up by hash.
func (s *Sessions) FindValidByUser(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_valid = ? AND expires_at > ?", userID, true, time.Now()).
		Order("created_at desc").
		Find(&sessions).Error
	return sessions, err
}

// Invalidate marks one session invalid. Idempotent: invalidating an already
// invalid or missing session reports false without error.
func (s *Sessions) Invalidate(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND is_valid = ?", id, true).
		Updates(map[string]any{"is_valid": false, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

// InvalidateAllForUser revokes every active session, for logout-everywhere and
// forced password resets.
func (s *Sessions) InvalidateAllForUser(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND is_valid = ?", userID, true).
		Updates(map[string]any{"is_valid": false, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// PurgeExpired deletes sessions past their expiry; meant for a periodic sweep.
func (s *Sessions) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", time.Now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (s *Sessions) CountActiveForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND is_valid = ? AND expires_at > ?", userID, true, time.Now()).
		Count(&n).Error
	return n, err
}
