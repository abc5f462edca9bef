package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/audit"
	"authgate/internal/auth"
	"authgate/internal/models"
	"authgate/internal/store"
)

func ListRoles(roles *store.Roles, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := roles.List(r.Context())
		if err != nil {
			lg.Errorw("role list failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		respondData(w, http.StatusOK, list)
	}
}

func GetRole(roles *store.Roles) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := roles.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			apperr.WriteError(w, apperr.NotFound("role not found"))
			return
		}
		respondData(w, http.StatusOK, role)
	}
}

type roleReq struct {
	Name        *string  `json:"name"`
	DisplayName *string  `json:"displayName"`
	Description *string  `json:"description"`
	Hierarchy   *int     `json:"hierarchy"`
	Permissions []string `json:"permissions"`
}

func CreateRole(roles *store.Roles, perms *store.Permissions, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roleReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		if req.Name == nil || *req.Name == "" {
			apperr.WriteError(w, apperr.Validation("invalid role data", map[string]string{"name": "is required"}))
			return
		}
		role := models.Role{Name: *req.Name, DisplayName: *req.Name, Hierarchy: 100}
		if req.DisplayName != nil {
			role.DisplayName = *req.DisplayName
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		if req.Hierarchy != nil {
			role.Hierarchy = *req.Hierarchy
		}
		if len(req.Permissions) > 0 {
			ps, err := perms.FindByNames(r.Context(), req.Permissions)
			if err != nil {
				apperr.WriteError(w, apperr.Internal())
				return
			}
			role.Permissions = ps
		}
		if err := roles.Create(r.Context(), &role); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				apperr.WriteError(w, apperr.Conflict("role name already exists"))
				return
			}
			lg.Errorw("role create failed", "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "roles.create", Resource: "roles", ResourceID: role.ID,
			Details: map[string]any{"name": role.Name},
		})
		respondData(w, http.StatusCreated, role)
	}
}

func UpdateRole(roles *store.Roles, perms *store.Permissions, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req roleReq
		if err := decodeJSON(r, &req); err != nil {
			apperr.WriteError(w, err)
			return
		}
		role, err := roles.FindByID(r.Context(), id)
		if err != nil {
			apperr.WriteError(w, apperr.NotFound("role not found"))
			return
		}
		if req.Name != nil && *req.Name != "" && !role.IsSystemRole {
			role.Name = *req.Name
		}
		if req.DisplayName != nil {
			role.DisplayName = *req.DisplayName
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		if req.Hierarchy != nil {
			role.Hierarchy = *req.Hierarchy
		}
		if req.Permissions != nil {
			ps, err := perms.FindByNames(r.Context(), req.Permissions)
			if err != nil {
				apperr.WriteError(w, apperr.Internal())
				return
			}
			if err := roles.ReplacePermissions(r.Context(), role, ps); err != nil {
				apperr.WriteError(w, apperr.Internal())
				return
			}
			role.Permissions = ps
		}
		if err := roles.Save(r.Context(), role); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				apperr.WriteError(w, apperr.Conflict("role name already exists"))
				return
			}
			lg.Errorw("role update failed", "role", id, "error", err)
			apperr.WriteError(w, apperr.Internal())
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "roles.update", Resource: "roles", ResourceID: role.ID,
		})
		respondData(w, http.StatusOK, role)
	}
}

func DeleteRole(roles *store.Roles, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := roles.Delete(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, store.ErrSystemRole):
				apperr.WriteError(w, apperr.Forbidden("system roles cannot be deleted"))
			case errors.Is(err, store.ErrNotFound):
				apperr.WriteError(w, apperr.NotFound("role not found"))
			default:
				lg.Errorw("role delete failed", "role", id, "error", err)
				apperr.WriteError(w, apperr.Internal())
			}
			return
		}
		actor, _ := auth.IdentityFromContext(r.Context())
		rec.Record(r.Context(), audit.Event{
			UserID: actor.UserID, UserEmail: actor.Email,
			Action: "roles.delete", Resource: "roles", ResourceID: id,
		})
		respondMessage(w, http.StatusOK, "role deleted")
	}
}
