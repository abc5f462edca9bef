package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("auth: invalid token")

const (
	defaultAccessTTL          = 15 * time.Minute
	defaultRefreshTTL         = 7 * 24 * time.Hour
	defaultExtendedRefreshTTL = 30 * 24 * time.Hour
)

// AccessClaims ride in the short-lived access token. Role names are carried
// for display and logging; authorization re-resolves permissions from the
// store on every check.
type AccessClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the user id, so role changes never require a
// refresh-token reissue.
type RefreshClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies the two token kinds with separate secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	extendedTTL   time.Duration
	now           func() time.Time
}

type TokenOption func(*TokenService)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

func WithAccessTTL(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.accessTTL = d
		}
	}
}

func WithRefreshTTL(normal, extended time.Duration) TokenOption {
	return func(s *TokenService) {
		if normal > 0 {
			s.refreshTTL = normal
		}
		if extended > 0 {
			s.extendedTTL = extended
		}
	}
}

func NewTokenService(accessSecret, refreshSecret string, opts ...TokenOption) *TokenService {
	s := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		extendedTTL:   defaultExtendedRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccessToken signs a self-contained credential so read paths can
// authenticate without a store round trip for its lifetime.
func (s *TokenService) IssueAccessToken(userID, email string, roles []string) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// IssueRefreshToken signs the long-lived credential. Extended lifetime is the
// "remember me" path.
func (s *TokenService) IssueRefreshToken(userID string, extended bool) (string, time.Time, error) {
	ttl := s.refreshTTL
	if extended {
		ttl = s.extendedTTL
	}
	return s.issueRefresh(userID, s.now().Add(ttl))
}

// IssueRefreshTokenUntil signs a refresh token with a fixed expiry. Rotation
// uses it so a rotated token never extends the session's original window.
func (s *TokenService) IssueRefreshTokenUntil(userID string, expiresAt time.Time) (string, error) {
	tok, _, err := s.issueRefresh(userID, expiresAt)
	return tok, err
}

func (s *TokenService) issueRefresh(userID string, expiresAt time.Time) (string, time.Time, error) {
	claims := RefreshClaims{
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	return tok, expiresAt, err
}

// VerifyAccessToken checks signature and expiry and returns the claims.
func (s *TokenService) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.accessSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// VerifyRefreshToken checks signature, expiry, and token type, returning the
// owning user id.
func (s *TokenService) VerifyRefreshToken(tokenStr string) (string, error) {
	var claims RefreshClaims
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.refreshSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid || claims.TokenType != "refresh" || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
