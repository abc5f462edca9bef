// Package seed provisions the system catalog on first boot: permissions, the
// built-in roles, the default admin account, and the settings singleton.
package seed

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"authgate/internal/auth"
	"authgate/internal/models"
	"authgate/internal/store"
)

// AdminRole and auth.DefaultRole are the built-in system roles.
const AdminRole = "admin"

type resourceActions struct {
	resource string
	category string
	actions  []string
}

var catalog = []resourceActions{
	{"users", "User Management", []string{"read", "create", "update", "delete"}},
	{"roles", "User Management", []string{"read", "create", "update", "delete"}},
	{"permissions", "User Management", []string{"read", "create", "update", "delete"}},
	{"settings", "System", []string{"read", "update"}},
	{"audit-logs", "System", []string{"read"}},
}

// Run is idempotent; it creates what is missing and refreshes the admin role's
// permission set so new catalog entries reach it.
func Run(ctx context.Context, stores *store.Stores, defaults models.Setting, adminEmail, adminPassword string, lg *zap.SugaredLogger) error {
	perms, err := ensurePermissions(ctx, stores)
	if err != nil {
		return err
	}
	if err := ensureRoles(ctx, stores, perms); err != nil {
		return err
	}
	if err := ensureAdmin(ctx, stores, adminEmail, adminPassword, lg); err != nil {
		return err
	}
	_, err = stores.Settings.Get(ctx, defaults)
	return err
}

func ensurePermissions(ctx context.Context, stores *store.Stores) ([]models.Permission, error) {
	var all []models.Permission
	for _, ra := range catalog {
		for _, action := range ra.actions {
			p := models.Permission{
				Name:               ra.resource + "." + action,
				DisplayName:        ra.resource + " " + action,
				Resource:           ra.resource,
				Action:             action,
				Category:           ra.category,
				IsSystemPermission: true,
			}
			err := stores.Permissions.Create(ctx, &p)
			if errors.Is(err, store.ErrDuplicate) {
				existing, ferr := stores.Permissions.FindByNames(ctx, []string{p.Name})
				if ferr != nil {
					return nil, ferr
				}
				all = append(all, existing...)
				continue
			}
			if err != nil {
				return nil, err
			}
			all = append(all, p)
		}
	}
	return all, nil
}

func ensureRoles(ctx context.Context, stores *store.Stores, perms []models.Permission) error {
	admin := models.Role{
		Name:         AdminRole,
		DisplayName:  "Administrator",
		Description:  "Full access to every resource",
		Hierarchy:    1,
		IsSystemRole: true,
		Permissions:  perms,
	}
	err := stores.Roles.Create(ctx, &admin)
	if errors.Is(err, store.ErrDuplicate) {
		existing, ferr := stores.Roles.FindByNames(ctx, []string{AdminRole})
		if ferr != nil || len(existing) == 0 {
			return ferr
		}
		if rerr := stores.Roles.ReplacePermissions(ctx, &existing[0], perms); rerr != nil {
			return rerr
		}
	} else if err != nil {
		return err
	}

	base := models.Role{
		Name:         auth.DefaultRole,
		DisplayName:  "User",
		Description:  "Base role for self-service access",
		Hierarchy:    100,
		IsSystemRole: true,
	}
	err = stores.Roles.Create(ctx, &base)
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

func ensureAdmin(ctx context.Context, stores *store.Stores, email, password string, lg *zap.SugaredLogger) error {
	if _, err := stores.Users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	roles, err := stores.Roles.FindByNames(ctx, []string{AdminRole})
	if err != nil {
		return err
	}
	u := models.User{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     "System",
		LastName:      "Administrator",
		IsActive:      true,
		EmailVerified: true,
		Roles:         roles,
	}
	if err := stores.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return err
	}
	lg.Infow("seeded default admin", "email", u.Email)
	return nil
}
