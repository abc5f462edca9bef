package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"authgate/internal/models"
)

type Users struct {
	db *gorm.DB
}

// NormalizeEmail lowercases and trims an address; every lookup and insert goes
// through it so email uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Users) Create(ctx context.Context, u *models.User) error {
	u.Email = NormalizeEmail(u.Email)
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Roles.Permissions").First(&u, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Roles").First(&u, "email = ?", NormalizeEmail(email)).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Users) List(ctx context.Context, page, limit int) ([]models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := s.db.WithContext(ctx).Preload("Roles").
		Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&users).Error
	return users, total, err
}

func (s *Users) Save(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()
	return translate(s.db.WithContext(ctx).Save(u).Error)
}

// ReplaceRoles swaps the user's role set atomically via the join table.
func (s *Users) ReplaceRoles(ctx context.Context, u *models.User, roles []models.Role) error {
	return s.db.WithContext(ctx).Model(u).Association("Roles").Replace(roles)
}

// Delete removes the user together with its owned sessions and role links.
func (s *Users) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_roles WHERE user_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RecordLogin stamps last-login metadata. Idempotent, safe to complete after
// the client has gone away.
func (s *Users) RecordLogin(ctx context.Context, id, ip string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"last_login_at": at, "last_login_ip": ip}).Error
}

func (s *Users) UpdatePassword(ctx context.Context, id, hash string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now()}).Error
}
