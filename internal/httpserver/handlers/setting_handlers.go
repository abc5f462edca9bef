package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/audit"
	"authgate/internal/auth"
	"authgate/internal/models"
	"authgate/internal/store"
)

// GetSettings reads the singleton, creating it with defaults when absent.
// Token secrets never serialize (json:"-").
func GetSettings(settings *store.Settings, defaults models.Setting, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := settings.Get(r.Context(), defaults)
		if err != nil {
			lg.Errorw("settings read failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		respondData(w, http.StatusOK, st)
	}
}

type settingsReq struct {
	AccessTokenTTL     *string `json:"accessTokenTtl"`
	RefreshTokenTTL    *string `json:"refreshTokenTtl"`
	ExtendedRefreshTTL *string `json:"extendedRefreshTtl"`
	MaxLoginAttempts   *int    `json:"maxLoginAttempts"`
	LockoutDuration    *string `json:"lockoutDuration"`
	CompanyName        *string `json:"companyName"`
	CompanyLogoURL     *string `json:"companyLogoUrl"`
}

// UpdateSettings patches the singleton. Lifetime and limiter changes take
// effect on restart.
func UpdateSettings(settings *store.Settings, defaults models.Setting, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		details := map[string]string{}
		for field, v := range map[string]*string{
			"accessTokenTtl":     req.AccessTokenTTL,
			"refreshTokenTtl":    req.RefreshTokenTTL,
			"extendedRefreshTtl": req.ExtendedRefreshTTL,
			"lockoutDuration":    req.LockoutDuration,
		} {
			if v != nil {
				if _, err := time.ParseDuration(*v); err != nil {
					details[field] = "must be a duration like 15m or 168h"
				}
			}
		}
		if req.MaxLoginAttempts != nil && *req.MaxLoginAttempts < 1 {
			details["maxLoginAttempts"] = "must be at least 1"
		}
		if len(details) > 0 {
			apperr.WriteError(w, apperr.Validation("invalid settings", details))
			return
		}
		st, err := settings.Get(r.Context(), defaults)
		if err != nil {
			apperr.WriteError(w, apperr.Internal())
			return
		}
		if req.AccessTokenTTL != nil {
			st.AccessTokenTTL = *req.AccessTokenTTL
		}
		if req.RefreshTokenTTL != nil {
			st.RefreshTokenTTL = *req.RefreshTokenTTL
		}
		if req.ExtendedRefreshTTL != nil {
			st.ExtendedRefreshTTL = *req.ExtendedRefreshTTL
		}
		if req.MaxLoginAttempts != nil {
			st.MaxLoginAttempts = *req.MaxLoginAttempts
		}
		if req.LockoutDuration != nil {
			st.LockoutDuration = *req.LockoutDuration
		}
		if req.CompanyName != nil {
			st.CompanyName = *req.CompanyName
		}
		if req.CompanyLogoURL != nil {
			st.CompanyLogoURL = *req.CompanyLogoURL
		}
		if err := settings.Save(r.Context(), st); err != nil {
			lg.Errorw("settings update failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "settings.update", Resource: "settings", ResourceID: "1",
		})
		respondData(w, http.StatusOK, st)
	}
}
