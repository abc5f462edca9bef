package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/audit"
	"authgate/internal/auth"
	"authgate/internal/models"
	"authgate/internal/store"
)

func ListUsers(users *store.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, total, err := users.List(r.Context(), page, limit)
		if err != nil {
			lg.Errorw("user list failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		respondData(w, http.StatusOK, map[string]any{"users": list, "total": total})
	}
}

func GetUser(users *store.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			apperr.WriteError(w, apperr.NotFound("user not found"))
			return
		}
		respondData(w, http.StatusOK, u)
	}
}

type createUserReq struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
	IsActive  *bool    `json:"isActive"`
}

// CreateUser is the privileged path; unlike registration it may set roles and
// the active flag directly.
func CreateUser(users *store.Users, roles *store.Roles, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
			apperr.WriteError(w, apperr.Validation("invalid user data", map[string]string{"email": "must be a valid email address"}))
			return
		}
		if len(req.Password) < minPasswordLen {
			apperr.WriteError(w, apperr.Validation("invalid user data", map[string]string{"password": "must be at least 8 characters"}))
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			apperr.WriteError(w, apperr.Internal())
			return
		}
		u := models.User{
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			IsActive:     req.IsActive == nil || *req.IsActive,
		}
		if len(req.Roles) > 0 {
			rs, err := roles.FindByNames(r.Context(), req.Roles)
			if err != nil {
				apperr.WriteError(w, apperr.Internal())
				return
			}
			u.Roles = rs
		}
		if err := users.Create(r.Context(), &u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				apperr.WriteError(w, apperr.Conflict("email already registered"))
				return
			}
			lg.Errorw("user create failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "users.create", Resource: "users", ResourceID: u.ID,
			Details: map[string]any{"email": u.Email},
		})
		respondData(w, http.StatusCreated, u)
	}
}

type updateUserReq struct {
	FirstName *string  `json:"firstName"`
	LastName  *string  `json:"lastName"`
	Email     *string  `json:"email"`
	IsActive  *bool    `json:"isActive"`
	Roles     []string `json:"roles"`
}

func (req updateUserReq) privileged() bool {
	return req.IsActive != nil || req.Roles != nil
}

// UpdateUser serves both the admin path and the self-service path. The self
// exception covers profile fields only; role and active-flag changes always
// demand the users.update permission, even on yourself.
func UpdateUser(users *store.Users, roles *store.Roles, perms *store.Permissions, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req updateUserReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		u, err := users.FindByID(r.Context(), id)
		if err != nil {
			apperr.WriteError(w, apperr.NotFound("user not found"))
			return
		}
		if req.privileged() {
			actor, _ := auth.IdentityFromContext(r.Context())
			held, err := perms.NamesForUser(r.Context(), actor.UserID)
			if err != nil {
				apperr.WriteError(w, apperr.Internal())
				return
			}
			if !contains(held, "users.update") {
				apperr.WriteError(w, apperr.Forbidden("role and status changes require users.update"))
				return
			}
		}
		if req.FirstName != nil {
			u.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			u.LastName = *req.LastName
		}
		if req.Email != nil {
			u.Email = store.NormalizeEmail(*req.Email)
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if req.Roles != nil {
			rs, err := roles.FindByNames(r.Context(), req.Roles)
			if err != nil {
				apperr.WriteError(w, apperr.Internal())
				return
			}
			if err := users.ReplaceRoles(r.Context(), u, rs); err != nil {
				apperr.WriteError(w, apperr.Internal())
				return
			}
			u.Roles = rs
		}
		if err := users.Save(r.Context(), u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				apperr.WriteError(w, apperr.Conflict("email already registered"))
				return
			}
			lg.Errorw("user update failed", "user", id, "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "users.update", Resource: "users", ResourceID: u.ID,
		})
		respondData(w, http.StatusOK, u)
	}
}

func DeleteUser(users *store.Users, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor, _ := auth.IdentityFromContext(r.Context())
		if id == actor.UserID {
			apperr.WriteError(w, apperr.Validation("you cannot delete your own account", nil))
			return
		}
		if err := users.Delete(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				apperr.WriteError(w, apperr.NotFound("user not found"))
				return
			}
			lg.Errorw("user delete failed", "user", id, "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "users.delete", Resource: "users", ResourceID: id,
		})
		respondMessage(w, http.StatusOK, "user deleted")
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
