package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"authgate/internal/models"
)

type Permissions struct {
	db *gorm.DB
}

func (s *Permissions) Create(ctx context.Context, p *models.Permission) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Permissions) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	var p models.Permission
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Permissions) FindByNames(ctx context.Context, names []string) ([]models.Permission, error) {
	var perms []models.Permission
	err := s.db.WithContext(ctx).Where("name IN ?", names).Find(&perms).Error
	return perms, err
}

func (s *Permissions) List(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	err := s.db.WithContext(ctx).Order("category asc, name asc").Find(&perms).Error
	return perms, err
}

func (s *Permissions) Save(ctx context.Context, p *models.Permission) error {
	p.UpdatedAt = time.Now()
	return translate(s.db.WithContext(ctx).Save(p).Error)
}

// Delete refuses system permissions. Role references are detached here; any
// left dangling by out-of-band deletes are filtered by the joins in
// NamesForUser anyway.
func (s *Permissions) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Permission
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if p.IsSystemPermission {
			return ErrSystemPermission
		}
		if err := tx.Exec("DELETE FROM role_permissions WHERE permission_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Permission{}, "id = ?", id).Error
	})
}

// NamesForUser walks user -> roles -> permissions and returns the flattened,
// distinct permission-name set.
func (s *Permissions) NamesForUser(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Table("permissions").
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Joins("JOIN user_roles ur ON ur.role_id = rp.role_id").
		Where("ur.user_id = ?", userID).
		Distinct().
		Order("permissions.name asc").
		Pluck("permissions.name", &names).Error
	return names, err
}
