package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/audit"
	"authgate/internal/models"
	"authgate/internal/store"
)

const invalidCredentialsMsg = "invalid credentials"

// DefaultRole is assigned at registration when the caller provides none.
const DefaultRole = "user"

// Service orchestrates registration, login, refresh, and logout. It owns
// password verification and session creation.
type Service struct {
	stores *store.Stores
	tokens *TokenService
	audit  *audit.Recorder
	lg     *zap.SugaredLogger
	now    func() time.Time
}

type ServiceOption func(*Service)

// WithNow overrides the clock, for tests.
func WithNow(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(stores *store.Stores, tokens *TokenService, rec *audit.Recorder, lg *zap.SugaredLogger, opts ...ServiceOption) *Service {
	s := &Service{stores: stores, tokens: tokens, audit: rec, lg: lg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Tokens() *TokenService { return s.tokens }

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	RoleNames []string
}

// Register creates a user. Duplicate email is a Conflict. When no roles are
// given the base role is attached, if it exists.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
	}
	roleNames := in.RoleNames
	if len(roleNames) == 0 {
		roleNames = []string{DefaultRole}
	}
	roles, err := s.stores.Roles.FindByNames(ctx, roleNames)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	if err := s.stores.Users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.audit.Record(ctx, audit.Event{
				UserEmail: store.NormalizeEmail(in.Email), Action: "auth.register",
				Resource: "users", Status: audit.StatusFailure, ErrorMessage: "email already registered",
			})
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		UserID: u.ID, UserEmail: u.Email, Action: "auth.register",
		Resource: "users", ResourceID: u.ID,
	})
	return u, nil
}

type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
}

type LoginResult struct {
	User             *models.User
	Permissions      []string
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Login verifies credentials, creates a session bound to the device, and
// issues both tokens. Unknown email, inactive account, and wrong password all
// fail with the identical Unauthorized to resist user enumeration.
func (s *Service) Login(ctx context.Context, creds Credentials, device DeviceInfo) (*LoginResult, error) {
	fail := func(email, reason string) (*LoginResult, error) {
		s.audit.Record(ctx, audit.Event{
			UserEmail: store.NormalizeEmail(email), Action: "auth.login", Resource: "sessions",
			Status: audit.StatusFailure, ErrorMessage: reason,
			Details: map[string]any{"ip": device.IP},
		})
		return nil, apperr.Unauthorized(invalidCredentialsMsg)
	}

	u, err := s.stores.Users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(creds.Email, "unknown email")
		}
		return nil, err
	}
	if !u.IsActive {
		return fail(creds.Email, "account inactive")
	}
	if err := CheckPassword(u.PasswordHash, creds.Password); err != nil {
		return fail(creds.Email, "password mismatch")
	}

	roleNames := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roleNames = append(roleNames, r.Name)
	}
	access, err := s.tokens.IssueAccessToken(u.ID, u.Email, roleNames)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt, err := s.tokens.IssueRefreshToken(u.ID, creds.RememberMe)
	if err != nil {
		return nil, err
	}
	if err := s.createSession(ctx, u.ID, refresh, device, expiresAt); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.stores.Users.RecordLogin(ctx, u.ID, device.IP, now); err != nil {
		s.lg.Warnw("last-login update failed", "user", u.ID, "error", err)
	}
	u.LastLoginAt = &now
	u.LastLoginIP = device.IP

	perms, err := s.stores.Permissions.NamesForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		UserID: u.ID, UserEmail: u.Email, Action: "auth.login", Resource: "sessions",
		Details: map[string]any{"ip": device.IP, "browser": device.Browser, "os": device.OS},
	})
	return &LoginResult{User: u, Permissions: perms, AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: expiresAt}, nil
}

func (s *Service) createSession(ctx context.Context, userID, refreshToken string, device DeviceInfo, expiresAt time.Time) error {
	hash, err := HashRefreshToken(refreshToken)
	if err != nil {
		return err
	}
	return s.stores.Sessions.Create(ctx, &models.Session{
		UserID:    userID,
		TokenHash: hash,
		UserAgent: device.UserAgent,
		IP:        device.IP,
		Browser:   device.Browser,
		OS:        device.OS,
		IsValid:   true,
		ExpiresAt: expiresAt,
	})
}

// findSession locates the live session matching the presented token. The hash
// is salted, so this scans the user's valid sessions and compares each
// candidate; the user id comes from the token's own claims, keeping the scan
// O(sessions-per-user).
func (s *Service) findSession(ctx context.Context, userID, refreshToken string) (*models.Session, error) {
	sessions, err := s.stores.Sessions.FindValidByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if CompareRefreshToken(sessions[i].TokenHash, refreshToken) {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

type RefreshResult struct {
	User             *models.User
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshAccessToken re-issues the access token after verifying both the
// refresh token's signature and a live session for it. The refresh token is
// rotated: the old session dies and the replacement keeps the original expiry,
// so rotation never stretches the session window.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string, device DeviceInfo) (*RefreshResult, error) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	sess, err := s.findSession(ctx, userID, refreshToken)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.Unauthorized("session expired")
	}
	u, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil || !u.IsActive {
		return nil, apperr.Unauthorized("session expired")
	}

	roleNames := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roleNames = append(roleNames, r.Name)
	}
	access, err := s.tokens.IssueAccessToken(u.ID, u.Email, roleNames)
	if err != nil {
		return nil, err
	}
	rotated, err := s.tokens.IssueRefreshTokenUntil(u.ID, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if _, err := s.stores.Sessions.Invalidate(ctx, sess.ID); err != nil {
		return nil, err
	}
	if err := s.createSession(ctx, u.ID, rotated, device, sess.ExpiresAt); err != nil {
		return nil, err
	}
	return &RefreshResult{User: u, AccessToken: access, RefreshToken: rotated, RefreshExpiresAt: sess.ExpiresAt}, nil
}

// Logout invalidates the session matching the presented refresh token.
// Idempotent: a missing, already-invalid, or garbage token is a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return
	}
	sess, err := s.findSession(ctx, userID, refreshToken)
	if err != nil || sess == nil {
		return
	}
	if _, err := s.stores.Sessions.Invalidate(ctx, sess.ID); err != nil {
		s.lg.Warnw("session invalidation failed", "session", sess.ID, "error", err)
		return
	}
	s.audit.Record(ctx, audit.Event{
		UserID: userID, Action: "auth.logout", Resource: "sessions", ResourceID: sess.ID,
	})
}

// LogoutAllSessions revokes every active session for the user.
func (s *Service) LogoutAllSessions(ctx context.Context, userID string) error {
	n, err := s.stores.Sessions.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		UserID: userID, Action: "auth.logout_all", Resource: "sessions",
		Details: map[string]any{"revoked": n},
	})
	return nil
}

// ChangePassword verifies the current password, rehashes, and revokes every
// session so stolen refresh tokens die with the old password.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthorized(invalidCredentialsMsg)
		}
		return err
	}
	if err := CheckPassword(u.PasswordHash, current); err != nil {
		s.audit.Record(ctx, audit.Event{
			UserID: u.ID, UserEmail: u.Email, Action: "auth.change_password",
			Resource: "users", ResourceID: u.ID,
			Status: audit.StatusFailure, ErrorMessage: "current password mismatch",
		})
		return apperr.Unauthorized(invalidCredentialsMsg)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.stores.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	if _, err := s.stores.Sessions.InvalidateAllForUser(ctx, u.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		UserID: u.ID, UserEmail: u.Email, Action: "auth.change_password",
		Resource: "users", ResourceID: u.ID,
	})
	return nil
}
