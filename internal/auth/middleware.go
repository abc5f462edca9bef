package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/store"
)

// AccessTokenCookie and RefreshTokenCookie name the transport cookies.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Middleware gates protected endpoints. Authentication trusts the verified
// access token; authorization always re-resolves the caller's permission set
// from the store, so a role change takes effect on the next request.
type Middleware struct {
	tokens *TokenService
	perms  *store.Permissions
	lg     *zap.SugaredLogger
}

func NewMiddleware(tokens *TokenService, perms *store.Permissions, lg *zap.SugaredLogger) *Middleware {
	return &Middleware{tokens: tokens, perms: perms, lg: lg}
}

// TokenFromRequest pulls the access token from the cookie, falling back to the
// Authorization bearer header for non-browser clients.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// Authenticate verifies the access token and attaches the caller's identity.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := TokenFromRequest(r)
		if raw == "" {
			apperr.WriteError(w, apperr.Unauthorized("missing access token"))
			return
		}
		claims, err := m.tokens.VerifyAccessToken(raw)
		if err != nil {
			apperr.WriteError(w, apperr.Unauthorized("invalid or expired token"))
			return
		}
		id := Identity{UserID: claims.Subject, Email: claims.Email, Roles: claims.Roles}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequirePermissions gates on the caller holding every listed permission.
func (m *Middleware) RequirePermissions(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := m.authorize(r, required); err != nil {
				apperr.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission is the single-permission convenience form.
func (m *Middleware) RequirePermission(required string) func(http.Handler) http.Handler {
	return m.RequirePermissions(required)
}

// RequireSelfOrPermission lets a caller act on their own resource (the route
// parameter equals their user id) and otherwise demands the permission. The
// self exception is this named policy, nowhere implicit.
func (m *Middleware) RequireSelfOrPermission(param, required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				apperr.WriteError(w, apperr.Unauthorized("missing access token"))
				return
			}
			if chi.URLParam(r, param) == id.UserID {
				next.ServeHTTP(w, r)
				return
			}
			if err := m.authorize(r, []string{required}); err != nil {
				apperr.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) authorize(r *http.Request, required []string) error {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return apperr.Unauthorized("missing access token")
	}
	names, err := m.perms.NamesForUser(r.Context(), id.UserID)
	if err != nil {
		m.lg.Errorw("permission resolution failed", "user", id.UserID, "error", err)
		return apperr.Internal()
	}
	held := make(map[string]struct{}, len(names))
	for _, n := range names {
		held[n] = struct{}{}
	}
	for _, want := range required {
		if _, ok := held[want]; !ok {
			return apperr.Forbidden("insufficient permissions")
		}
	}
	return nil
}
