package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"authgate/internal/models"
)

type Roles struct {
	db *gorm.DB
}

func (s *Roles) Create(ctx context.Context, r *models.Role) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *Roles) FindByID(ctx context.Context, id string) (*models.Role, error) {
	var r models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").First(&r, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *Roles) FindByNames(ctx context.Context, names []string) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).Where("name IN ?", names).Find(&roles).Error
	return roles, err
}

// List orders by hierarchy, seniors first; name breaks ties.
func (s *Roles) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").
		Order("hierarchy asc, name asc").Find(&roles).Error
	return roles, err
}

func (s *Roles) Save(ctx context.Context, r *models.Role) error {
	r.UpdatedAt = time.Now()
	return translate(s.db.WithContext(ctx).Save(r).Error)
}

func (s *Roles) ReplacePermissions(ctx context.Context, r *models.Role, perms []models.Permission) error {
	return s.db.WithContext(ctx).Model(r).Association("Permissions").Replace(perms)
}

// Delete refuses system roles and detaches the role from users and permissions.
func (s *Roles) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Role
		if err := tx.First(&r, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if r.IsSystemRole {
			return ErrSystemRole
		}
		if err := tx.Exec("DELETE FROM user_roles WHERE role_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM role_permissions WHERE role_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Role{}, "id = ?", id).Error
	})
}
