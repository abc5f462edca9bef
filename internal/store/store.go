// Package store holds the repositories over the persistent entities. Uniqueness
// (email, role and permission names) is enforced by database indexes, not by
// application locks; concurrent writers race safely on the constraint.
package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("store: not found")
	ErrDuplicate        = errors.New("store: already exists")
	ErrSystemRole       = errors.New("store: system role cannot be deleted")
	ErrSystemPermission = errors.New("store: system permission cannot be deleted")
)

// Stores bundles every repository over one database handle.
type Stores struct {
	Users       *Users
	Roles       *Roles
	Permissions *Permissions
	Sessions    *Sessions
	Settings    *Settings
}

func New(db *gorm.DB) *Stores {
	return &Stores{
		Users:       &Users{db: db},
		Roles:       &Roles{db: db},
		Permissions: &Permissions{db: db},
		Sessions:    &Sessions{db: db},
		Settings:    &Settings{db: db},
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return ErrDuplicate
	default:
		return err
	}
}

// isDuplicate matches the unique-violation wording of postgres and sqlite.
func isDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
