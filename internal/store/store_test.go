package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"authgate/internal/models"
	"authgate/internal/store"
)

func testStores(t *testing.T) *store.Stores {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Permission{}, &models.Role{}, &models.User{},
		&models.Session{}, &models.Setting{}, &models.AuditLog{},
	))
	return store.New(db)
}

func TestUserEmailIsCaseInsensitiveAndUnique(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	u := &models.User{Email: "Bob@X.com", PasswordHash: "h"}
	require.NoError(t, s.Users.Create(ctx, u))
	assert.Equal(t, "bob@x.com", u.Email)

	found, err := s.Users.FindByEmail(ctx, "BOB@x.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	err = s.Users.Create(ctx, &models.User{Email: "bob@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestUserDeleteCascadesSessions(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	u := &models.User{Email: "bob@x.com", PasswordHash: "h"}
	require.NoError(t, s.Users.Create(ctx, u))
	require.NoError(t, s.Sessions.Create(ctx, &models.Session{
		UserID: u.ID, TokenHash: "th", IsValid: true, ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.Users.Delete(ctx, u.ID))

	sessions, err := s.Sessions.FindValidByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.ErrorIs(t, s.Users.Delete(ctx, u.ID), store.ErrNotFound)
}

func TestSessionInvalidateIsIdempotent(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	sess := &models.Session{UserID: "u1", TokenHash: "th", IsValid: true, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.Sessions.Create(ctx, sess))

	changed, err := s.Sessions.Invalidate(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Sessions.Invalidate(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Sessions.Invalidate(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSessionExpiryAndPurge(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	live := &models.Session{UserID: "u1", TokenHash: "a", IsValid: true, ExpiresAt: time.Now().Add(time.Hour)}
	expired := &models.Session{UserID: "u1", TokenHash: "b", IsValid: true, ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, s.Sessions.Create(ctx, live))
	require.NoError(t, s.Sessions.Create(ctx, expired))

	// Expired rows are invisible before any purge runs.
	sessions, err := s.Sessions.FindValidByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, live.ID, sessions[0].ID)

	n, err := s.Sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestInvalidateAllForUser(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Sessions.Create(ctx, &models.Session{
			UserID: "u1", TokenHash: fmt.Sprintf("t%d", i), IsValid: true, ExpiresAt: time.Now().Add(time.Hour),
		}))
	}
	require.NoError(t, s.Sessions.Create(ctx, &models.Session{
		UserID: "u2", TokenHash: "other", IsValid: true, ExpiresAt: time.Now().Add(time.Hour),
	}))

	n, err := s.Sessions.InvalidateAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	remaining, err := s.Sessions.FindValidByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSystemRoleDeleteProtection(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	system := &models.Role{Name: "admin", DisplayName: "Admin", IsSystemRole: true}
	custom := &models.Role{Name: "auditor", DisplayName: "Auditor"}
	require.NoError(t, s.Roles.Create(ctx, system))
	require.NoError(t, s.Roles.Create(ctx, custom))

	assert.ErrorIs(t, s.Roles.Delete(ctx, system.ID), store.ErrSystemRole)
	assert.NoError(t, s.Roles.Delete(ctx, custom.ID))
	assert.ErrorIs(t, s.Roles.Delete(ctx, custom.ID), store.ErrNotFound)
}

func TestSystemPermissionDeleteProtection(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	p := &models.Permission{Name: "users.read", DisplayName: "read", Resource: "users", Action: "read", IsSystemPermission: true}
	require.NoError(t, s.Permissions.Create(ctx, p))
	assert.ErrorIs(t, s.Permissions.Delete(ctx, p.ID), store.ErrSystemPermission)
}

func TestNamesForUserFlattensGraphAndDropsDangling(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()

	read := models.Permission{Name: "users.read", DisplayName: "r", Resource: "users", Action: "read"}
	update := models.Permission{Name: "users.update", DisplayName: "u", Resource: "users", Action: "update"}
	require.NoError(t, s.Permissions.Create(ctx, &read))
	require.NoError(t, s.Permissions.Create(ctx, &update))

	r1 := models.Role{Name: "viewer", DisplayName: "v", Permissions: []models.Permission{read}}
	r2 := models.Role{Name: "editor", DisplayName: "e", Permissions: []models.Permission{read, update}}
	require.NoError(t, s.Roles.Create(ctx, &r1))
	require.NoError(t, s.Roles.Create(ctx, &r2))

	u := &models.User{Email: "bob@x.com", PasswordHash: "h", Roles: []models.Role{r1, r2}}
	require.NoError(t, s.Users.Create(ctx, u))

	names, err := s.Permissions.NamesForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"users.read", "users.update"}, names)

	// Deleting a permission dangles the role reference; reads filter it out.
	require.NoError(t, s.Permissions.Delete(ctx, update.ID))
	names, err = s.Permissions.NamesForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"users.read"}, names)
}

func TestSettingsSingleton(t *testing.T) {
	s := testStores(t)
	ctx := context.Background()
	defaults := models.Setting{
		AccessTokenSecret:  "a",
		RefreshTokenSecret: "r",
		AccessTokenTTL:     "15m",
		RefreshTokenTTL:    "168h",
		ExtendedRefreshTTL: "720h",
		MaxLoginAttempts:   5,
		LockoutDuration:    "1m",
	}

	st, err := s.Settings.Get(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ID)
	assert.Equal(t, "15m", st.AccessTokenTTL)

	st.CompanyName = "Acme"
	require.NoError(t, s.Settings.Save(ctx, st))

	again, err := s.Settings.Get(ctx, defaults)
	require.NoError(t, err)
	assert.Equal(t, 1, again.ID)
	assert.Equal(t, "Acme", again.CompanyName)
}
