package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"authgate/internal/audit"
	"authgate/internal/auth"
	"authgate/internal/httpserver"
	"authgate/internal/httpserver/handlers"
	"authgate/internal/models"
	"authgate/internal/ratelimit"
	"authgate/internal/seed"
	"authgate/internal/store"
)

const (
	adminEmail    = "admin@x.com"
	adminPassword = "admin-pass-123"
)

func newTestServer(t *testing.T, limiter ratelimit.Limiter) (*httptest.Server, *store.Stores) {
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

	lg := zap.NewNop().Sugar()
	stores := store.New(db)
	defaults := models.Setting{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     "15m",
		RefreshTokenTTL:    "168h",
		ExtendedRefreshTTL: "720h",
		MaxLoginAttempts:   5,
		LockoutDuration:    "1m",
	}
	require.NoError(t, seed.Run(context.Background(), stores, defaults, adminEmail, adminPassword, lg))

	tokens := auth.NewTokenService("access-secret", "refresh-secret")
	recorder := audit.NewRecorder(db, lg)
	svc := auth.NewService(stores, tokens, recorder, lg)

	router := httpserver.NewRouter(httpserver.Deps{
		Stores:          stores,
		Auth:            svc,
		MW:              auth.NewMiddleware(tokens, stores.Permissions, lg),
		Audit:           recorder,
		LoginLimiter:    limiter,
		Cookies:         handlers.CookieConfig{Secure: false, AccessTTL: tokens.AccessTTL()},
		SettingDefaults: defaults,
		Log:             lg,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, stores
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Err     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func TestAuthFlowEndToEnd(t *testing.T) {
	lim := ratelimit.NewMemory(100, time.Minute)
	defer lim.Stop()
	ts, _ := newTestServer(t, lim)
	client := newClient(t)

	// Register: 201, no tokens issued.
	resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/auth/register", map[string]any{
		"email": "bob@x.com", "password": "password123",
		"firstName": "Bob", "lastName": "Example",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	// Login: 200 with both cookies set.
	resp, env := doJSON(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]any{
		"email": "bob@x.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = true
		assert.True(t, c.HttpOnly, "%s must be httpOnly", c.Name)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	}
	assert.True(t, names["accessToken"])
	assert.True(t, names["refreshToken"])
	var loginData struct {
		User        models.User `json:"user"`
		Permissions []string    `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &loginData))
	assert.Equal(t, "bob@x.com", loginData.User.Email)

	// Me: resolves the same account.
	resp, env = doJSON(t, client, http.MethodGet, ts.URL+"/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var meData struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &meData))
	assert.Equal(t, "bob@x.com", meData.User.Email)

	// Refresh rotates the refresh cookie.
	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Logout clears both cookies.
	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		assert.LessOrEqual(t, c.MaxAge, 0, "%s must be cleared", c.Name)
	}

	// The jar dropped the cookies, so /auth/me is unauthorized again.
	resp, env = doJSON(t, client, http.MethodGet, ts.URL+"/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, env.Err)
	assert.Equal(t, "UNAUTHORIZED", env.Err.Code)
}

func TestExpiredAccessTokenIsRejected(t *testing.T) {
	lim := ratelimit.NewMemory(100, time.Minute)
	defer lim.Stop()
	ts, _ := newTestServer(t, lim)

	// Same secret, clock 20 minutes behind: the token is past its 15m TTL.
	stale := auth.NewTokenService("access-secret", "refresh-secret",
		auth.WithClock(func() time.Time { return time.Now().Add(-20 * time.Minute) }))
	tok, err := stale.IssueAccessToken("some-user", "bob@x.com", nil)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: tok})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPermissionGatesOnProtectedResources(t *testing.T) {
	lim := ratelimit.NewMemory(100, time.Minute)
	defer lim.Stop()
	ts, _ := newTestServer(t, lim)

	// Fresh registrations hold the base role with no admin permissions.
	bob := newClient(t)
	resp, _ := doJSON(t, bob, http.MethodPost, ts.URL+"/auth/register", map[string]any{
		"email": "bob@x.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, bob, http.MethodPost, ts.URL+"/auth/login", map[string]any{
		"email": "bob@x.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := doJSON(t, bob, http.MethodGet, ts.URL+"/users", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, env.Err)
	assert.Equal(t, "FORBIDDEN", env.Err.Code)

	// The seeded admin passes the same gate.
	admin := newClient(t)
	resp, _ = doJSON(t, admin, http.MethodPost, ts.URL+"/auth/login", map[string]any{
		"email": adminEmail, "password": adminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, admin, http.MethodGet, ts.URL+"/users", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSystemRoleDeletionIsRefusedOverHTTP(t *testing.T) {
	lim := ratelimit.NewMemory(100, time.Minute)
	defer lim.Stop()
	ts, _ := newTestServer(t, lim)

	admin := newClient(t)
	resp, _ := doJSON(t, admin, http.MethodPost, ts.URL+"/auth/login", map[string]any{
		"email": adminEmail, "password": adminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := doJSON(t, admin, http.MethodGet, ts.URL+"/roles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roles []models.Role
	require.NoError(t, json.Unmarshal(env.Data, &roles))

	var systemID, customID string
	for _, r := range roles {
		if r.IsSystemRole && systemID == "" {
			systemID = r.ID
		}
	}
	require.NotEmpty(t, systemID)

	resp, env = doJSON(t, admin, http.MethodDelete, ts.URL+"/roles/"+systemID, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, env.Err)
	assert.Equal(t, "FORBIDDEN", env.Err.Code)

	// A custom role with no dependents deletes fine.
	resp, env = doJSON(t, admin, http.MethodPost, ts.URL+"/roles", map[string]any{
		"name": "auditor", "displayName": "Auditor",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Role
	require.NoError(t, json.Unmarshal(env.Data, &created))
	customID = created.ID

	resp, _ = doJSON(t, admin, http.MethodDelete, ts.URL+"/roles/"+customID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginRateLimit(t *testing.T) {
	lim := ratelimit.NewMemory(2, time.Minute)
	defer lim.Stop()
	ts, _ := newTestServer(t, lim)
	client := newClient(t)

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]any{
			"email": "nobody@x.com", "password": "wrong-wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, env := doJSON(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]any{
		"email": "nobody@x.com", "password": "wrong-wrong",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotNil(t, env.Err)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Err.Code)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestSelfServiceProfileUpdate(t *testing.T) {
	lim := ratelimit.NewMemory(100, time.Minute)
	defer lim.Stop()
	ts, stores := newTestServer(t, lim)

	bob := newClient(t)
	resp, env := doJSON(t, bob, http.MethodPost, ts.URL+"/auth/register", map[string]any{
		"email": "bob@x.com", "password": "password123", "firstName": "Bob",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.User
	require.NoError(t, json.Unmarshal(env.Data, &created))

	resp, _ = doJSON(t, bob, http.MethodPost, ts.URL+"/auth/login", map[string]any{
		"email": "bob@x.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Profile fields are self-serviceable.
	resp, _ = doJSON(t, bob, http.MethodPatch, ts.URL+"/users/"+created.ID, map[string]any{
		"firstName": "Robert",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Privileged fields on yourself still demand users.update.
	resp, env = doJSON(t, bob, http.MethodPatch, ts.URL+"/users/"+created.ID, map[string]any{
		"roles": []string{seed.AdminRole},
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, env.Err)

	u, err := stores.Users.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Robert", u.FirstName)
}
