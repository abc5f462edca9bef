package handlers

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/auth"
	"authgate/internal/store"
)

const minPasswordLen = 8

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func validateRegister(req registerReq) error {
	details := map[string]string{}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		details["email"] = "must be a valid email address"
	}
	if len(req.Password) < minPasswordLen {
		details["password"] = "must be at least 8 characters"
	}
	if len(details) > 0 {
		return apperr.Validation("invalid registration data", details)
	}
	return nil
}

// Register creates the account; no tokens are issued until login.
func Register(svc *auth.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		if err := validateRegister(req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		u, err := svc.Register(r.Context(), auth.RegisterInput{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			lg.Infow("registration rejected", "email", req.Email, "error", err)
			apperr.WriteError(w, err)
			return
		}
		respondData(w, http.StatusCreated, u)
	}
}

type loginReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

func Login(svc *auth.Service, cc CookieConfig, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		if req.Email == "" || req.Password == "" {
			apperr.WriteError(w, apperr.Validation("email and password are required", nil))
			return
		}
		res, err := svc.Login(r.Context(), auth.Credentials{
			Email:      req.Email,
			Password:   req.Password,
			RememberMe: req.RememberMe,
		}, auth.DeviceFromRequest(r))
		if err != nil {
			apperr.WriteError(w, err)
			return
		}
		setAuthCookies(w, cc, res.AccessToken, res.RefreshToken, time.Until(res.RefreshExpiresAt))
		respondData(w, http.StatusOK, map[string]any{
			"user":        res.User,
			"permissions": res.Permissions,
		})
	}
}

// Refresh reads the refresh cookie, re-issues the access token, and rotates
// the refresh token.
func Refresh(svc *auth.Service, cc CookieConfig, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(auth.RefreshTokenCookie)
		if err != nil || c.Value == "" {
			apperr.WriteError(w, apperr.Unauthorized("missing refresh token"))
			return
		}
		res, err := svc.RefreshAccessToken(r.Context(), c.Value, auth.DeviceFromRequest(r))
		if err != nil {
			clearAuthCookies(w, cc)
			apperr.WriteError(w, err)
			return
		}
		setAuthCookies(w, cc, res.AccessToken, res.RefreshToken, time.Until(res.RefreshExpiresAt))
		respondData(w, http.StatusOK, map[string]any{"user": res.User})
	}
}

func Logout(svc *auth.Service, cc CookieConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(auth.RefreshTokenCookie); err == nil && c.Value != "" {
			svc.Logout(r.Context(), c.Value)
		}
		clearAuthCookies(w, cc)
		respondMessage(w, http.StatusOK, "logged out")
	}
}

// LogoutAll revokes every session the caller owns.
func LogoutAll(svc *auth.Service, cc CookieConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.Subject(r.Context())
		if err := svc.LogoutAllSessions(r.Context(), uid); err != nil {
			apperr.WriteError(w, err)
			return
		}
		clearAuthCookies(w, cc)
		respondMessage(w, http.StatusOK, "all sessions revoked")
	}
}

// Me returns the caller's profile with the resolved permission-name set.
func Me(users *store.Users, perms *store.Permissions, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.Subject(r.Context())
		u, err := users.FindByID(r.Context(), uid)
		if err != nil {
			apperr.WriteError(w, apperr.Unauthorized("unknown user"))
			return
		}
		names, err := perms.NamesForUser(r.Context(), uid)
		if err != nil {
			lg.Errorw("permission resolution failed", "user", uid, "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		respondData(w, http.StatusOK, map[string]any{
			"user":        u,
			"permissions": names,
		})
	}
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rehashes and revokes every session; the caller logs in again.
func ChangePassword(svc *auth.Service, cc CookieConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		if len(req.NewPassword) < minPasswordLen {
			apperr.WriteError(w, apperr.Validation("invalid password", map[string]string{
				"newPassword": "must be at least 8 characters",
			}))
			return
		}
		uid := auth.Subject(r.Context())
		if err := svc.ChangePassword(r.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
			apperr.WriteError(w, err)
			return
		}
		clearAuthCookies(w, cc)
		respondMessage(w, http.StatusOK, "password changed, log in again")
	}
}
